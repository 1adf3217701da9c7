package compressed

import (
	"rv32iss/internal/isa"
	"rv32iss/internal/membus"
)

// Attach installs a FetchInstruction hook on core that first reads a
// 16-bit halfword; if its quadrant bits mark it as a full 32-bit
// instruction (bits 1:0 == 0b11) it falls back to a normal 32-bit fetch,
// otherwise it expands the compressed form and reports isCompressed=true
// so the caller advances PC by 2 instead of 4.
func Attach(core *isa.Core) {
	core.FetchInstruction = fetch
}

func fetch(core *isa.Core, pc uint32) (uint32, bool, error) {
	if pc&0x1 != 0 {
		return 0, false, &isa.TrapError{Cause: isa.TrapInstrMisaligned, Tval: pc}
	}
	lo, fault := core.Bus.Read(pc, membus.Halfword)
	if fault {
		return 0, false, &isa.TrapError{Cause: isa.TrapInstrAccessFault, Tval: pc}
	}
	if lo&0x3 == 0x3 {
		hi, fault := core.Bus.Read(pc+2, membus.Halfword)
		if fault {
			return 0, false, &isa.TrapError{Cause: isa.TrapInstrAccessFault, Tval: pc + 2}
		}
		return lo | hi<<16, false, nil
	}
	word, err := Expand32(uint16(lo))
	if err != nil {
		return 0, false, &isa.TrapError{Cause: isa.TrapIllegalInstr, Tval: uint32(lo)}
	}
	return word, true, nil
}
