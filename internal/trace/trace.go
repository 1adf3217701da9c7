// Package trace is the thin, read-only introspection surface the
// simulator's disassemble_runtime/use_abi_names run() options need: a
// register dump and a best-effort one-line-per-instruction label. Full
// disassembly text formatting is an explicitly out-of-scope collaborator
// (per the simulator's own non-goals); this package gives a trace stream
// just enough to be useful without trying to be that formatter, following
// the shape of the teacher's DebuggableCPU/RegisterInfo/DisassembledLine
// trio with the CPU-agnostic debugger machinery (breakpoints, freeze/
// resume, the Machine Monitor itself) left out.
package trace

import (
	"fmt"

	"rv32iss/internal/decode"
	"rv32iss/internal/hart"
)

// RegisterInfo describes one architectural register for a trace dump.
type RegisterInfo struct {
	Name  string
	Value uint32
	Group string // "integer", "float", "csr"
}

// DisassembledLine is one best-effort decoded instruction.
type DisassembledLine struct {
	Address  uint32
	Mnemonic string
	Size     int
}

// Registers returns every integer (and, if withFloat, float) register.
// Integer registers are named by ABI convention or raw x0..x31 depending on
// useABINames; float registers are always named f0..f31.
func Registers(s *hart.State, useABINames, withFloat bool) []RegisterInfo {
	names := hart.RawNames
	if useABINames {
		names = hart.ABINames
	}
	out := make([]RegisterInfo, 0, 64)
	for i := 0; i < 32; i++ {
		out = append(out, RegisterInfo{Name: names[i], Value: s.X.Get(uint32(i)), Group: "integer"})
	}
	if withFloat {
		for i := 0; i < 32; i++ {
			out = append(out, RegisterInfo{Name: fmt.Sprintf("f%d", i), Value: s.F.Get(uint32(i)), Group: "float"})
		}
	}
	return out
}

var opcodeNames = map[uint32]string{
	decode.OpLUI:     "lui",
	decode.OpAUIPC:   "auipc",
	decode.OpJAL:     "jal",
	decode.OpJALR:    "jalr",
	decode.OpBranch:  "branch",
	decode.OpLoad:    "load",
	decode.OpStore:   "store",
	decode.OpImm:     "op-imm",
	decode.OpOp:      "op",
	decode.OpMiscMem: "fence",
	decode.OpSystem:  "system",
	decode.OpLoadFP:  "flw",
	decode.OpStoreFP: "fsw",
	decode.OpOpFP:    "op-fp",
	decode.OpMadd:    "fmadd",
	decode.OpMsub:    "fmsub",
	decode.OpNmsub:   "fnmsub",
	decode.OpNmadd:   "fnmadd",
}

// Disassemble labels the instruction at addr with its decoded major
// opcode class and raw operand fields — not a mnemonic-accurate
// disassembly (that formatting is out of scope), just enough for a trace
// line to be legible while stepping.
func Disassemble(word uint32, addr uint32, size int) DisassembledLine {
	d := decode.Decode32(word)
	name, ok := opcodeNames[d.Opcode]
	if !ok {
		name = fmt.Sprintf("reserved(%#02x)", d.Opcode)
	}
	return DisassembledLine{
		Address:  addr,
		Mnemonic: fmt.Sprintf("%-8s rd=%d rs1=%d rs2=%d imm=%d", name, d.Rd, d.Rs1, d.Rs2, d.Imm),
		Size:     size,
	}
}
