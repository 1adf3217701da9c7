package fpu

import (
	"rv32iss/internal/decode"
	"rv32iss/internal/hart"
	"rv32iss/internal/isa"
	"rv32iss/internal/membus"
)

// Core wires the F extension into an isa.Core by setting its
// ExecuteOpFP/ExecuteLoadFP/ExecuteStoreFP hooks, the same "derived class
// configures the base's virtual seams" relationship rv32f_cpu has with
// rv32i_cpu.
type Core struct {
	core  *isa.Core
	state *hart.State
}

// Attach wires F-extension handling into core.
func Attach(core *isa.Core, state *hart.State) *Core {
	c := &Core{core: core, state: state}
	core.ExecuteOpFP = c.executeOpFP
	core.ExecuteLoadFP = c.executeLoadFP
	core.ExecuteStoreFP = c.executeStoreFP
	return c
}

func (c *Core) env(rm uint32) *Env {
	if rm == DYN {
		rm = c.state.CSR[hart.CSRFrm]
	}
	return &Env{RM: rm}
}

func (c *Core) commitFlags(e *Env) {
	c.state.CSR[hart.CSRFflags] |= e.Flags
}

func (c *Core) executeLoadFP(core *isa.Core, d decode.Descriptor) error {
	addr := c.state.X.Get(d.Rs1) + uint32(d.Imm)
	if addr&0x3 != 0 {
		return &isa.TrapError{Cause: isa.TrapLoadMisaligned, Tval: addr}
	}
	v, fault := c.core.Bus.Read(addr, membus.Word)
	if fault {
		return &isa.TrapError{Cause: isa.TrapLoadAccessFault, Tval: addr}
	}
	c.state.F.Set(d.Rd, v)
	return nil
}

func (c *Core) executeStoreFP(core *isa.Core, d decode.Descriptor) error {
	addr := c.state.X.Get(d.Rs1) + uint32(d.Imm)
	if addr&0x3 != 0 {
		return &isa.TrapError{Cause: isa.TrapStoreMisaligned, Tval: addr}
	}
	if fault := c.core.Bus.Write(addr, membus.Word, c.state.F.Get(d.Rs2)); fault {
		return &isa.TrapError{Cause: isa.TrapStoreAccessFault, Tval: addr}
	}
	return nil
}

// executeOpFP dispatches OP-FP and the four fused-multiply-add major
// opcodes, following rv32f_cpu's tertiary (funct7) then quaternary
// (funct3, for FSGNJ/FMIN-FMAX/FCMP/FMV) decode layering.
func (c *Core) executeOpFP(core *isa.Core, d decode.Descriptor) error {
	switch d.Opcode {
	case decode.OpMadd, decode.OpMsub, decode.OpNmsub, decode.OpNmadd:
		return c.executeFused(d)
	}

	rs1 := c.state.F.Get(d.Rs1)
	rs2 := c.state.F.Get(d.Rs2)
	e := c.env(d.RM)
	defer c.commitFlags(e)

	switch d.Funct7 {
	case 0x00: // FADD.S
		c.state.F.Set(d.Rd, e.Add(rs1, rs2))
	case 0x04: // FSUB.S
		c.state.F.Set(d.Rd, e.Sub(rs1, rs2))
	case 0x08: // FMUL.S
		c.state.F.Set(d.Rd, e.Mul(rs1, rs2))
	case 0x0C: // FDIV.S
		c.state.F.Set(d.Rd, e.Div(rs1, rs2))
	case 0x2C: // FSQRT.S
		c.state.F.Set(d.Rd, e.Sqrt(rs1))
	case 0x10: // FSGNJ.S family, selected by funct3
		switch d.Funct3 {
		case 0x0:
			c.state.F.Set(d.Rd, Sgnj(rs1, rs2))
		case 0x1:
			c.state.F.Set(d.Rd, Sgnjn(rs1, rs2))
		case 0x2:
			c.state.F.Set(d.Rd, Sgnjx(rs1, rs2))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x14: // FMIN.S/FMAX.S, selected by funct3
		switch d.Funct3 {
		case 0x0:
			c.state.F.Set(d.Rd, e.Min(rs1, rs2))
		case 0x1:
			c.state.F.Set(d.Rd, e.Max(rs1, rs2))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x60: // FCVT.W.S / FCVT.WU.S, selected by rs2
		switch d.Rs2 {
		case 0x0:
			c.state.X.Set(d.Rd, e.CvtWS(rs1))
		case 0x1:
			c.state.X.Set(d.Rd, e.CvtWUS(rs1))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x68: // FCVT.S.W / FCVT.S.WU, selected by rs2
		xrs1 := c.state.X.Get(d.Rs1)
		switch d.Rs2 {
		case 0x0:
			c.state.F.Set(d.Rd, e.CvtSW(int32(xrs1)))
		case 0x1:
			c.state.F.Set(d.Rd, e.CvtSWU(xrs1))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x70: // FMV.X.W / FCLASS.S, selected by funct3
		switch d.Funct3 {
		case 0x0:
			c.state.X.Set(d.Rd, MvXW(rs1))
		case 0x1:
			c.state.X.Set(d.Rd, Class(rs1))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x50: // FEQ.S/FLT.S/FLE.S, selected by funct3
		switch d.Funct3 {
		case 0x2:
			c.state.X.Set(d.Rd, e.Eq(rs1, rs2))
		case 0x1:
			c.state.X.Set(d.Rd, e.Lt(rs1, rs2))
		case 0x0:
			c.state.X.Set(d.Rd, e.Le(rs1, rs2))
		default:
			return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
		}
	case 0x78: // FMV.W.X
		xrs1 := c.state.X.Get(d.Rs1)
		c.state.F.Set(d.Rd, MvWX(xrs1))
	default:
		return &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: d.Raw}
	}
	return nil
}

func (c *Core) executeFused(d decode.Descriptor) error {
	a := c.state.F.Get(d.Rs1)
	b := c.state.F.Get(d.Rs2)
	cc := c.state.F.Get(d.Rs3)
	e := c.env(d.RM)
	defer c.commitFlags(e)

	switch d.Opcode {
	case decode.OpMadd: // FMADD.S
		c.state.F.Set(d.Rd, e.FMA(a, b, cc))
	case decode.OpMsub: // FMSUB.S: (a*b)-c
		c.state.F.Set(d.Rd, e.FMA(a, b, cc^0x80000000))
	case decode.OpNmsub: // FNMSUB.S: -(a*b)+c
		c.state.F.Set(d.Rd, e.FMA(a^0x80000000, b, cc))
	case decode.OpNmadd: // FNMADD.S: -(a*b)-c
		c.state.F.Set(d.Rd, e.FMA(a^0x80000000, b, cc^0x80000000))
	}
	return nil
}
