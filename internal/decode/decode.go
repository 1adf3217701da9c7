// Package decode turns a raw 32-bit instruction word into a Descriptor the
// execution core can dispatch on, following the reference simulator's
// primary/secondary/tertiary/quaternary decode-table layering (primary on
// opcode, secondary on funct3, tertiary on funct7, quaternary for the
// OP-FP funct3 sub-split the F extension needs).
package decode

import "fmt"

// Base opcode field (bits 6:2, with the mandatory 0b11 in bits 1:0 already
// stripped), matching riscv-spec-v2.2 table 19.1.
const (
	OpLoad     = 0x00
	OpLoadFP   = 0x01
	OpMiscMem  = 0x03
	OpImm      = 0x04
	OpAUIPC    = 0x05
	OpStore    = 0x08
	OpStoreFP  = 0x09
	OpAMO      = 0x0B
	OpOp       = 0x0C
	OpLUI      = 0x0D
	OpMadd     = 0x10
	OpMsub     = 0x11
	OpNmsub    = 0x12
	OpNmadd    = 0x13
	OpOpFP     = 0x14
	OpBranch   = 0x18
	OpJALR     = 0x19
	OpJAL      = 0x1B
	OpSystem   = 0x1C
)

// Descriptor is the fully-decoded form of one instruction, populated by
// Decode32 from the raw word and consumed by the execution core. The
// funct and register fields are always taken from their fixed bit
// positions, whatever the format, so a field the format does not use holds
// whatever bits sit there; only Imm depends on the format, and it is zero
// for R- and R4-type words.
type Descriptor struct {
	Raw    uint32
	Opcode uint32
	Funct3 uint32
	Funct7 uint32
	Rd     uint32
	Rs1    uint32
	Rs2    uint32
	Rs3    uint32 // fused-multiply-add operand, R4-type only
	Imm    int32
	RM     uint32 // rounding-mode field, FP instructions only (same bits as Funct3)

	// Mnemonic is filled in by the execution core's dispatch table once a
	// leaf handler is found; Decode32 itself only classifies the bit
	// pattern, it never resolves the handler.
	Mnemonic string
}

// Decode32 extracts every field a 32-bit RV32 instruction word can carry.
// It does not validate that the opcode/funct3/funct7 combination names a
// real instruction — that is the execution core's dispatch-table lookup.
func Decode32(word uint32) Descriptor {
	d := Descriptor{
		Raw:    word,
		Opcode: (word >> 2) & 0x1F,
		Funct3: (word >> 12) & 0x7,
		Funct7: (word >> 25) & 0x7F,
		Rd:     (word >> 7) & 0x1F,
		Rs1:    (word >> 15) & 0x1F,
		Rs2:    (word >> 20) & 0x1F,
		Rs3:    (word >> 27) & 0x1F,
	}
	d.RM = d.Funct3

	switch d.Opcode {
	case OpLUI, OpAUIPC:
		d.Imm = int32(word & 0xFFFFF000)
	case OpJAL:
		imm := (word>>11)&0x100000 | word&0xFF000 | (word>>9)&0x800 | (word>>20)&0x7FE
		d.Imm = signExtend(imm, 20)
	case OpBranch:
		imm := (word>>19)&0x1000 | (word<<4)&0x800 | (word>>20)&0x7E0 | (word>>7)&0x1E
		d.Imm = signExtend(imm, 12)
	case OpStore, OpStoreFP:
		imm := (word>>20)&0xFE0 | (word>>7)&0x1F
		d.Imm = signExtend(imm, 11)
	case OpLoad, OpLoadFP, OpImm, OpJALR, OpMiscMem, OpSystem:
		d.Imm = signExtend((word>>20)&0xFFF, 11)
	default:
		// R-type (OpOp, OpOpFP, OpAMO) and R4-type (Op{Madd,Msub,Nmsub,Nmadd})
		// carry no immediate; Imm stays zero.
	}
	return d
}

// signExtend sign-extends the low (signBit+1) bits of v.
func signExtend(v uint32, signBit uint) int32 {
	shift := 31 - signBit
	return int32(v<<shift) >> shift
}

// Handler is the signature every leaf of a dispatch table implements; Exec
// is free to define its own concrete handler type built on this shape, but
// decode tables across the simulator follow this (opcode-classified
// pointer-or-nil) structure.
type Handler func(d Descriptor) error

// Table is a keyed (map-backed) secondary/tertiary dispatch table. A missing
// or nil entry means the bit pattern is reserved; looking it up is a decode fault,
// not a panic, matching the reference simulator's decode_exception hook.
type Table map[uint32]Handler

// Lookup fetches t[key], returning ok=false for reserved encodings instead
// of a zero value, so callers can report a precise illegal-instruction
// trap rather than silently falling through to a nil handler.
func Lookup(t Table, key uint32) (Handler, bool) {
	h, ok := t[key]
	return h, ok && h != nil
}

// ErrReserved reports a decode that resolved to a reserved/unimplemented
// encoding.
func ErrReserved(word uint32) error {
	return fmt.Errorf("reserved or unimplemented instruction %#08x", word)
}
