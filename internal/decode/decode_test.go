package decode

import "testing"

// op assembles a full 7-bit opcode byte (bits 1:0 = 0b11, mandatory for
// every 32-bit RV32 instruction) from one of the 5-bit opcode constants
// above, since Decode32 derives d.Opcode from bits 6:2 of the word.
func op(classOpcode uint32) uint32 { return classOpcode<<2 | 0x3 }

func TestDecodeITypeImmediateSignExtends(t *testing.T) {
	// ADDI x1, x0, -1: imm field all ones.
	word := uint32(0xFFF)<<20 | 0<<15 | 0<<12 | 1<<7 | op(OpImm)
	d := Decode32(word)
	if d.Opcode != OpImm {
		t.Fatalf("opcode = %#x, want OpImm", d.Opcode)
	}
	if d.Imm != -1 {
		t.Errorf("imm = %d, want -1", d.Imm)
	}
	if d.Rd != 1 {
		t.Errorf("rd = %d, want 1", d.Rd)
	}
}

func TestDecodeUTypeImmediateIsUpperBitsVerbatim(t *testing.T) {
	word := uint32(0x10000)<<12 | 1<<7 | op(OpLUI)
	d := Decode32(word)
	if d.Imm != int32(0x10000000) {
		t.Errorf("imm = %#x, want 0x10000000", uint32(d.Imm))
	}
}

func TestDecodeJTypeImmediateAssembly(t *testing.T) {
	// JAL x1, +0x7FE (every bit of imm[10:1] set, the rest clear).
	imm := int32(0x7FE)
	word := rawJ(imm, 1)
	d := Decode32(word)
	if d.Imm != imm {
		t.Errorf("imm = %#x, want %#x", d.Imm, imm)
	}
}

func TestDecodeBTypeImmediateAssembly(t *testing.T) {
	imm := int32(-16) // BEQ backwards branch
	word := rawB(imm, 1, 2, 0)
	d := Decode32(word)
	if d.Imm != imm {
		t.Errorf("imm = %#x, want %#x", d.Imm, imm)
	}
}

func TestReservedOpcodeNotInTable(t *testing.T) {
	tbl := Table{}
	if _, ok := Lookup(tbl, 0x2A); ok {
		t.Error("empty table reported a hit for an unregistered key")
	}
}

// rawJ encodes a J-type word (JAL) the same way Decode32 expects to find it.
func rawJ(imm int32, rd uint32) uint32 {
	u := uint32(imm)
	return (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 | (u>>12&0xFF)<<12 | (rd&0x1F)<<7 | op(OpJAL)
}

// rawB encodes a B-type word (branches) the same way Decode32 expects.
func rawB(imm int32, rs1, rs2, funct3 uint32) uint32 {
	u := uint32(imm)
	return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 |
		(funct3&0x7)<<12 | (u>>1&0xF)<<8 | (u>>11&0x1)<<7 | op(OpBranch)
}
