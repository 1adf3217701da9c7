// Package isa implements the RV32I base integer core: the instruction
// handlers, the fetch/decode/execute step, and the PC/trap bookkeeping
// every extension builds on. It follows the reference simulator's
// inheritance chain (rv32i_cpu at the root) but expresses "things a
// derived class can override" as Go function fields on Core instead of
// virtual methods, the same composition-over-inheritance shift the
// teacher's own CPU types use (a concrete struct plus explicit hook
// fields, not a class hierarchy).
package isa

import (
	"fmt"

	"rv32iss/internal/decode"
	"rv32iss/internal/hart"
	"rv32iss/internal/membus"
)

// Trap codes (mcause values without the interrupt bit), matching the
// standard RISC-V privileged spec numbering the reference simulator's
// decode_exception/process_trap machinery uses.
const (
	TrapInstrMisaligned  = 0
	TrapInstrAccessFault = 1
	TrapIllegalInstr     = 2
	TrapBreakpoint       = 3
	TrapLoadMisaligned   = 4
	TrapLoadAccessFault  = 5
	TrapStoreMisaligned  = 6
	TrapStoreAccessFault = 7
	TrapECallM           = 11
)

// TrapError carries a synchronous-exception cause/tval pair out of a
// handler so Core.Step can hand it to the trap hook uniformly instead of
// every handler mutating CSR state directly.
type TrapError struct {
	Cause uint32
	Tval  uint32
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap: cause=%#x tval=%#x", e.Cause, e.Tval)
}

// Core is one hart's RV32I execution engine. Extensions (Zicsr, F, C) are
// wired in by setting the hook fields below rather than by subclassing;
// a Core with every hook left nil is a bare RV32I machine.
type Core struct {
	State *hart.State
	Bus   *membus.Bus

	// ProcessTrap delivers a synchronous exception. The base
	// implementation (set by NewCore) mirrors rv32i_cpu's own
	// process_trap stub: it redirects the PC to a fixed address without
	// saving mepc/mcause, exactly the "do nothing useful" base-class
	// behaviour the reference simulator documents. csr.Attach installs the
	// Zicsr core's trap handler here, which turns that into real M-mode
	// trap delivery.
	ProcessTrap func(core *Core, cause uint32, tval uint32)

	// FetchInstruction overrides 32-bit instruction fetch; the default
	// reads a word from Bus. The compressed-extension core swaps this in
	// to first try a 16-bit fetch and expand it.
	FetchInstruction func(core *Core, pc uint32) (word uint32, isCompressed bool, err error)

	// ExecuteOpFP, when non-nil, routes opcode 0x14 (OP-FP) to the F
	// extension core; ExecuteLoadFP/ExecuteStoreFP likewise route
	// FLW/FSW. Left nil, those opcodes decode to illegal instructions.
	ExecuteOpFP    func(core *Core, d decode.Descriptor) error
	ExecuteLoadFP  func(core *Core, d decode.Descriptor) error
	ExecuteStoreFP func(core *Core, d decode.Descriptor) error

	// ExecuteSystem routes CSR and ECALL/EBREAK/MRET handling; the base
	// Core handles bare ECALL/EBREAK itself (see system) but defers
	// to this hook first so a wired Zicsr core can claim CSRRW and
	// friends, matching rv32i_cpu's sys_tbl / access_csr split. pcUpdated
	// tells Step whether the hook already set PC itself (MRET) or left it
	// for the normal pc+4/pc+2 advance (every CSRRW/RS/RC variant).
	ExecuteSystem func(core *Core, d decode.Descriptor) (handled bool, pcUpdated bool, err error)

	ExitOnECall    bool
	HaltOnReserved bool
	ExitAddress    uint32
	HasExitAddress bool

	InstRetired uint64
	Cycles      uint64
}

// NewCore builds a Core wired to state and bus, with the base-class
// process_trap stub installed (redirect-with-no-state-save) so a Core used
// without Zicsr still behaves the way rv32i_cpu does standalone.
func NewCore(state *hart.State, bus *membus.Bus) *Core {
	c := &Core{State: state, Bus: bus}
	c.ProcessTrap = baseProcessTrap
	c.FetchInstruction = baseFetch
	return c
}

// RV32IFixedMtvecAddr is the address rv32i_cpu's own process_trap
// redirects to when no CSR-aware override is installed: a fixed low
// address with no state preservation, intentionally not a usable trap
// handler on its own.
const RV32IFixedMtvecAddr = 0x00000000

func baseProcessTrap(core *Core, cause uint32, tval uint32) {
	_ = cause
	_ = tval
	core.State.PC = RV32IFixedMtvecAddr
}

func baseFetch(core *Core, pc uint32) (uint32, bool, error) {
	if pc&0x3 != 0 {
		return 0, false, &TrapError{Cause: TrapInstrMisaligned, Tval: pc}
	}
	w, fault := core.Bus.Read(pc, membus.Word)
	if fault {
		return 0, false, &TrapError{Cause: TrapInstrAccessFault, Tval: pc}
	}
	return w, false, nil
}

// StepResult reports why Step returned control to the caller.
type StepResult int

const (
	StepOK StepResult = iota
	StepEBreak
	StepReserved
	StepExitAddress
	StepTrapped
)

func (r StepResult) String() string {
	switch r {
	case StepEBreak:
		return "ebreak"
	case StepReserved:
		return "reserved"
	case StepExitAddress:
		return "exit-address"
	case StepTrapped:
		return "trapped"
	default:
		return "ok"
	}
}

// Step fetches, decodes and executes exactly one instruction, advancing PC
// and the retired-instruction/cycle counters. It never blocks: memory and
// interrupt callbacks are required to be synchronous per the simulator's
// concurrency model.
func (c *Core) Step() (StepResult, error) {
	if c.HasExitAddress && c.State.PC == c.ExitAddress {
		return StepExitAddress, nil
	}

	pc := c.State.PC
	word, isCompressed, err := c.FetchInstruction(c, pc)
	if err != nil {
		if te, ok := err.(*TrapError); ok {
			c.ProcessTrap(c, te.Cause, te.Tval)
			return StepTrapped, nil
		}
		return StepOK, err
	}

	d := decode.Decode32(word)
	nextPC := pc + 4
	if isCompressed {
		nextPC = pc + 2
	}

	res, pcUpdated, execErr := c.execute(d)
	if execErr != nil {
		if te, ok := execErr.(*TrapError); ok {
			c.ProcessTrap(c, te.Cause, te.Tval)
			c.InstRetired++
			c.Cycles++
			return StepTrapped, nil
		}
		return StepOK, execErr
	}

	if !pcUpdated {
		c.State.PC = nextPC
	}
	c.InstRetired++
	c.Cycles++
	return res, nil
}
