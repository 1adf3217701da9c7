// Package csr implements the Zicsr extension: the CSRRW/CSRRS/CSRRC family
// (register and immediate forms), per-CSR write masks, MRET, and the
// M-mode trap/interrupt delivery machinery the base isa.Core's
// process_trap stub deliberately leaves unimplemented. This is grounded on
// the reference rv32i_cpu's access_csr/csr_wr_mask virtual seams and its
// interrupt-priority ordering (MEI > MSI > MTI > synchronous exceptions).
package csr

import (
	"rv32iss/internal/decode"
	"rv32iss/internal/hart"
	"rv32iss/internal/isa"
)

// IntCallback is polled once per step and returns a bitmask of pending
// external interrupts to OR into mip, matching the simulator's interrupt
// callback contract (called once per step, result merged into the next
// mip read).
type IntCallback func() uint32

// Core wraps an isa.Core with CSR state and wires the Zicsr hooks
// (ExecuteSystem, ProcessTrap) into it. It does not embed isa.Core by
// value — composition happens by mutating the hook fields of the Core
// passed to Attach, the same "derived class configures base class
// behaviour" relationship rv32csr_cpu has with rv32i_cpu, expressed
// without inheritance.
type Core struct {
	core *isa.Core
	csr  *[hart.CSRSpaceSize]uint32

	Vectored bool // not kept in sync with mtvec; trap delivery reads the mode from bit 0 of mtvec itself

	IntCallback IntCallback
}

// Attach wires Zicsr's CSR-instruction handling and trap delivery into
// core, replacing its base-class process_trap stub (which only redirects PC
// to a fixed address).
func Attach(core *isa.Core, state *hart.State) *Core {
	c := &Core{core: core, csr: &state.CSR}
	core.ExecuteSystem = c.executeSystem
	core.ProcessTrap = c.processTrap
	return c
}

// WriteMask reports which bits of the CSR at addr are writable, and
// whether addr names an implemented CSR at all — the Go expression of
// csr_wr_mask's (mask, unimp) pair.
func WriteMask(addr uint32) (mask uint32, unimp bool) {
	switch addr {
	case hart.CSRFflags:
		return 0x1F, false
	case hart.CSRFrm:
		return 0x7, false
	case hart.CSRFcsr:
		return 0xFF, false
	case hart.CSRMstatus:
		return hart.MstatusMIE | hart.MstatusMPIE, false
	case hart.CSRMisa, hart.CSRMvendorid, hart.CSRMarchid, hart.CSRMimpid, hart.CSRMhartid:
		return 0, false // read-only, but implemented: writes are silently dropped
	case hart.CSRMie, hart.CSRMip:
		return hart.InterruptMSI | hart.InterruptMTI | hart.InterruptMEI, false
	case hart.CSRMtvec, hart.CSRMscratch, hart.CSRMepc, hart.CSRMcause, hart.CSRMtval,
		hart.CSRMcycle, hart.CSRMinstret, hart.CSRMcycleh, hart.CSRMinstreth,
		hart.CSRMtime, hart.CSRMtimeh, hart.CSRMtimecmp, hart.CSRMtimecmph:
		return 0xFFFFFFFF, false
	default:
		return 0, true
	}
}

var readOnlyCSR = map[uint32]bool{
	hart.CSRMisa: true, hart.CSRMvendorid: true, hart.CSRMarchid: true,
	hart.CSRMimpid: true, hart.CSRMhartid: true,
	hart.CSRMcycle: true, hart.CSRMinstret: true,
	hart.CSRMcycleh: true, hart.CSRMinstreth: true,
}

// readCSR returns the live value for CSRs that mirror counters the core
// tracks separately from the raw CSR array (mcycle/minstret and their high
// halves), falling back to the stored value for everything else.
func (c *Core) readCSR(addr uint32) uint32 {
	switch addr {
	case hart.CSRMcycle:
		return uint32(c.core.Cycles)
	case hart.CSRMcycleh:
		return uint32(c.core.Cycles >> 32)
	case hart.CSRMinstret:
		return uint32(c.core.InstRetired)
	case hart.CSRMinstreth:
		return uint32(c.core.InstRetired >> 32)
	default:
		return c.csr[addr]
	}
}

func (c *Core) writeCSR(addr, value uint32) {
	if readOnlyCSR[addr] {
		return
	}
	mask, unimp := WriteMask(addr)
	if unimp {
		return
	}
	c.csr[addr] = (c.csr[addr] &^ mask) | (value & mask)
}

// executeSystem claims every SYSTEM encoding with a non-zero funct3 (the
// CSR family) plus MRET (funct3=0, a distinguished imm encoding), and
// reports handled=false for bare ECALL/EBREAK so isa.Core's own fallback
// processes those. Only MRET sets pcUpdated: it sets PC from mepc itself,
// while every CSRRW/RS/RC variant leaves PC for Step's normal pc+4/pc+2
// advance — claiming pcUpdated for those would freeze execution on the
// same instruction forever.
func (c *Core) executeSystem(core *isa.Core, d decode.Descriptor) (handled bool, pcUpdated bool, err error) {
	if d.Funct3 == 0 {
		if d.Raw == 0x30200073 { // MRET
			c.mret()
			return true, true, nil
		}
		return false, false, nil
	}

	addr := uint32(d.Imm) & 0xFFF
	var srcVal uint32
	isImm := d.Funct3 >= 0x5
	if isImm {
		srcVal = d.Rs1 // rs1 field doubles as a 5-bit zero-extended immediate
	} else {
		srcVal = core.State.X.Get(d.Rs1)
	}

	old := c.readCSR(addr)
	var writesCSR bool
	var newVal uint32
	switch d.Funct3 & 0x3 {
	case 0x1: // CSRRW / CSRRWI
		newVal = srcVal
		writesCSR = true
	case 0x2: // CSRRS / CSRRSI
		newVal = old | srcVal
		writesCSR = d.Rs1 != 0
	case 0x3: // CSRRC / CSRRCI
		newVal = old &^ srcVal
		writesCSR = d.Rs1 != 0
	default:
		return false, false, nil
	}
	core.State.X.Set(d.Rd, old)
	if writesCSR {
		c.writeCSR(addr, newVal)
	}
	return true, false, nil
}

// mret returns from an M-mode trap: restore PC from mepc, restore
// mstatus.MIE from mstatus.MPIE, and set MPIE.
func (c *Core) mret() {
	c.core.State.PC = c.csr[hart.CSRMepc]
	status := c.csr[hart.CSRMstatus]
	if status&hart.MstatusMPIE != 0 {
		status |= hart.MstatusMIE
	} else {
		status &^= hart.MstatusMIE
	}
	status |= hart.MstatusMPIE
	c.csr[hart.CSRMstatus] = status
}

// processTrap delivers a synchronous exception (or, via CheckInterrupt, an
// asynchronous one): save mepc/mcause/mtval, clear MIE into MPIE, and
// vector PC to mtvec (direct, or mtvec+4*cause if vectored and the trap is
// an interrupt).
func (c *Core) processTrap(core *isa.Core, cause uint32, tval uint32) {
	c.deliverTrap(cause, tval, false)
}

func (c *Core) deliverTrap(cause uint32, tval uint32, isInterrupt bool) {
	c.csr[hart.CSRMepc] = c.core.State.PC
	c.csr[hart.CSRMtval] = tval
	mcause := cause
	if isInterrupt {
		mcause |= 0x80000000
	}
	c.csr[hart.CSRMcause] = mcause

	status := c.csr[hart.CSRMstatus]
	if status&hart.MstatusMIE != 0 {
		status |= hart.MstatusMPIE
	} else {
		status &^= hart.MstatusMPIE
	}
	status &^= hart.MstatusMIE
	c.csr[hart.CSRMstatus] = status

	mtvec := c.csr[hart.CSRMtvec]
	base := mtvec &^ 0x3
	if isInterrupt && mtvec&0x1 != 0 {
		c.core.State.PC = base + 4*cause
	} else {
		c.core.State.PC = base
	}
}

// CheckInterrupt polls the registered interrupt callback, merges its
// result into mip, and — if an enabled, pending interrupt outranks any
// synchronous trap this step — delivers it instead, per the priority
// order MEI > MSI > MTI. It is called by the outer run loop before each
// Step, matching the "interrupt callback... called once per step" timing
// rule.
func (c *Core) CheckInterrupt() bool {
	if c.IntCallback != nil {
		c.csr[hart.CSRMip] |= c.IntCallback()
	}
	status := c.csr[hart.CSRMstatus]
	if status&hart.MstatusMIE == 0 {
		return false
	}
	mie := c.csr[hart.CSRMie]
	mip := c.csr[hart.CSRMip]
	pending := mie & mip

	switch {
	case pending&hart.InterruptMEI != 0:
		c.deliverTrap(11, 0, true)
	case pending&hart.InterruptMSI != 0:
		c.deliverTrap(3, 0, true)
	case pending&hart.InterruptMTI != 0:
		c.deliverTrap(7, 0, true)
	default:
		return false
	}
	return true
}
