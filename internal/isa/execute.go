package isa

import (
	"rv32iss/internal/decode"
	"rv32iss/internal/membus"
)

// execute dispatches one decoded instruction. It mirrors the reference
// simulator's primary-opcode switch (itself mirrored by the teacher's own
// giant opcode switch in Execute) followed by a secondary switch on
// funct3/funct7 for the opcodes that need it.
func (c *Core) execute(d decode.Descriptor) (StepResult, bool, error) {
	switch d.Opcode {
	case decode.OpLUI:
		c.State.X.Set(d.Rd, uint32(d.Imm))
		return StepOK, false, nil

	case decode.OpAUIPC:
		c.State.X.Set(d.Rd, c.State.PC+uint32(d.Imm))
		return StepOK, false, nil

	case decode.OpJAL:
		return c.jal(d)

	case decode.OpJALR:
		return c.jalr(d)

	case decode.OpBranch:
		return c.branch(d)

	case decode.OpLoad:
		return c.load(d)

	case decode.OpStore:
		return c.store(d)

	case decode.OpImm:
		return c.opImm(d)

	case decode.OpOp:
		return c.opReg(d)

	case decode.OpMiscMem:
		// FENCE/FENCE.I: no-op, there is no pipeline or cache to flush.
		return StepOK, false, nil

	case decode.OpSystem:
		return c.system(d)

	case decode.OpLoadFP:
		if c.ExecuteLoadFP == nil {
			return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
		}
		err := c.ExecuteLoadFP(c, d)
		return resultFor(c, err)

	case decode.OpStoreFP:
		if c.ExecuteStoreFP == nil {
			return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
		}
		err := c.ExecuteStoreFP(c, d)
		return resultFor(c, err)

	case decode.OpOpFP, decode.OpMadd, decode.OpMsub, decode.OpNmsub, decode.OpNmadd:
		if c.ExecuteOpFP == nil {
			return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
		}
		err := c.ExecuteOpFP(c, d)
		return resultFor(c, err)

	default:
		if c.HaltOnReserved {
			return StepReserved, false, nil
		}
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
}

func resultFor(c *Core, err error) (StepResult, bool, error) {
	if err != nil {
		return StepOK, false, err
	}
	return StepOK, false, nil
}

func (c *Core) jal(d decode.Descriptor) (StepResult, bool, error) {
	target := c.State.PC + uint32(d.Imm)
	if target&0x3 != 0 {
		return StepOK, false, &TrapError{Cause: TrapInstrMisaligned, Tval: target}
	}
	c.State.X.Set(d.Rd, c.State.PC+4)
	c.State.PC = target
	return StepOK, true, nil
}

func (c *Core) jalr(d decode.Descriptor) (StepResult, bool, error) {
	// Alignment is checked against rs1+imm before the least-significant
	// bit is cleared, so an odd target (e.g. imm=1 off a word-aligned
	// rs1) still raises instruction-address-misaligned with tval equal
	// to that raw sum, not the cleared target.
	sum := c.State.X.Get(d.Rs1) + uint32(d.Imm)
	if sum&0x3 != 0 {
		return StepOK, false, &TrapError{Cause: TrapInstrMisaligned, Tval: sum}
	}
	target := sum &^ 1
	ret := c.State.PC + 4
	c.State.X.Set(d.Rd, ret)
	c.State.PC = target
	return StepOK, true, nil
}

func (c *Core) branch(d decode.Descriptor) (StepResult, bool, error) {
	rs1 := c.State.X.Get(d.Rs1)
	rs2 := c.State.X.Get(d.Rs2)
	var taken bool
	switch d.Funct3 {
	case 0x0: // BEQ
		taken = rs1 == rs2
	case 0x1: // BNE
		taken = rs1 != rs2
	case 0x4: // BLT
		taken = int32(rs1) < int32(rs2)
	case 0x5: // BGE
		taken = int32(rs1) >= int32(rs2)
	case 0x6: // BLTU
		taken = rs1 < rs2
	case 0x7: // BGEU
		taken = rs1 >= rs2
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	if !taken {
		return StepOK, false, nil
	}
	target := c.State.PC + uint32(d.Imm)
	if target&0x3 != 0 {
		return StepOK, false, &TrapError{Cause: TrapInstrMisaligned, Tval: target}
	}
	c.State.PC = target
	return StepOK, true, nil
}

func (c *Core) load(d decode.Descriptor) (StepResult, bool, error) {
	addr := c.State.X.Get(d.Rs1) + uint32(d.Imm)
	var width membus.Width
	signed := false
	switch d.Funct3 {
	case 0x0: // LB
		width, signed = membus.Byte, true
	case 0x1: // LH
		width, signed = membus.Halfword, true
	case 0x2: // LW
		width = membus.Word
	case 0x4: // LBU
		width = membus.Byte
	case 0x5: // LHU
		width = membus.Halfword
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	if err := checkAlign(addr, width, TrapLoadMisaligned); err != nil {
		return StepOK, false, err
	}
	v, fault := c.Bus.Read(addr, width)
	if fault {
		return StepOK, false, &TrapError{Cause: TrapLoadAccessFault, Tval: addr}
	}
	if signed {
		v = signExtendWidth(v, width)
	}
	c.State.X.Set(d.Rd, v)
	return StepOK, false, nil
}

func (c *Core) store(d decode.Descriptor) (StepResult, bool, error) {
	addr := c.State.X.Get(d.Rs1) + uint32(d.Imm)
	var width membus.Width
	switch d.Funct3 {
	case 0x0:
		width = membus.Byte
	case 0x1:
		width = membus.Halfword
	case 0x2:
		width = membus.Word
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	if err := checkAlign(addr, width, TrapStoreMisaligned); err != nil {
		return StepOK, false, err
	}
	if fault := c.Bus.Write(addr, width, c.State.X.Get(d.Rs2)); fault {
		return StepOK, false, &TrapError{Cause: TrapStoreAccessFault, Tval: addr}
	}
	return StepOK, false, nil
}

func checkAlign(addr uint32, width membus.Width, cause uint32) error {
	mask := uint32(width) - 1
	if addr&mask != 0 {
		return &TrapError{Cause: cause, Tval: addr}
	}
	return nil
}

func signExtendWidth(v uint32, width membus.Width) uint32 {
	switch width {
	case membus.Byte:
		return uint32(int32(int8(v)))
	case membus.Halfword:
		return uint32(int32(int16(v)))
	default:
		return v
	}
}

func (c *Core) opImm(d decode.Descriptor) (StepResult, bool, error) {
	rs1 := c.State.X.Get(d.Rs1)
	imm := uint32(d.Imm)
	var result uint32
	switch d.Funct3 {
	case 0x0: // ADDI
		result = rs1 + imm
	case 0x2: // SLTI
		result = boolToU32(int32(rs1) < d.Imm)
	case 0x3: // SLTIU
		result = boolToU32(rs1 < imm)
	case 0x4: // XORI
		result = rs1 ^ imm
	case 0x6: // ORI
		result = rs1 | imm
	case 0x7: // ANDI
		result = rs1 & imm
	case 0x1: // SLLI
		if d.Raw>>25 != 0 {
			return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
		}
		result = rs1 << (imm & 0x1F)
	case 0x5: // SRLI/SRAI, selected by funct7
		shamt := imm & 0x1F
		if d.Funct7 == 0x20 {
			result = uint32(int32(rs1) >> shamt)
		} else if d.Funct7 == 0x00 {
			result = rs1 >> shamt
		} else {
			return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
		}
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	c.State.X.Set(d.Rd, result)
	return StepOK, false, nil
}

func (c *Core) opReg(d decode.Descriptor) (StepResult, bool, error) {
	rs1 := c.State.X.Get(d.Rs1)
	rs2 := c.State.X.Get(d.Rs2)
	var result uint32
	switch {
	case d.Funct3 == 0x0 && d.Funct7 == 0x00: // ADD
		result = rs1 + rs2
	case d.Funct3 == 0x0 && d.Funct7 == 0x20: // SUB
		result = rs1 - rs2
	case d.Funct3 == 0x1 && d.Funct7 == 0x00: // SLL
		result = rs1 << (rs2 & 0x1F)
	case d.Funct3 == 0x2 && d.Funct7 == 0x00: // SLT
		result = boolToU32(int32(rs1) < int32(rs2))
	case d.Funct3 == 0x3 && d.Funct7 == 0x00: // SLTU
		result = boolToU32(rs1 < rs2)
	case d.Funct3 == 0x4 && d.Funct7 == 0x00: // XOR
		result = rs1 ^ rs2
	case d.Funct3 == 0x5 && d.Funct7 == 0x00: // SRL
		result = rs1 >> (rs2 & 0x1F)
	case d.Funct3 == 0x5 && d.Funct7 == 0x20: // SRA
		result = uint32(int32(rs1) >> (rs2 & 0x1F))
	case d.Funct3 == 0x6 && d.Funct7 == 0x00: // OR
		result = rs1 | rs2
	case d.Funct3 == 0x7 && d.Funct7 == 0x00: // AND
		result = rs1 & rs2
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	c.State.X.Set(d.Rd, result)
	return StepOK, false, nil
}

// system handles the opcode-0x1C SYSTEM major class: bare ECALL/EBREAK are
// a base-Core responsibility; CSR instructions are claimed by
// ExecuteSystem when a Zicsr core is wired in (func3 != 0 implies CSR).
func (c *Core) system(d decode.Descriptor) (StepResult, bool, error) {
	if c.ExecuteSystem != nil {
		handled, pcUpdated, err := c.ExecuteSystem(c, d)
		if handled {
			if err != nil {
				return StepOK, false, err
			}
			return StepOK, pcUpdated, nil
		}
	}
	if d.Funct3 != 0 {
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
	switch d.Imm {
	case 0: // ECALL
		if c.ExitOnECall {
			return StepExitAddress, false, nil
		}
		return StepOK, false, &TrapError{Cause: TrapECallM, Tval: 0}
	case 1: // EBREAK
		// Retires like any other instruction but does not advance past
		// itself: pc is left pointing at the EBREAK so a debugger resuming
		// from it (or just inspecting pc) sees the breakpoint's own address.
		return StepEBreak, true, nil
	default:
		return StepOK, false, &TrapError{Cause: TrapIllegalInstr, Tval: d.Raw}
	}
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
