package trace

import (
	"testing"

	"rv32iss/internal/hart"
)

func TestRegistersUsesRequestedNaming(t *testing.T) {
	var s hart.State
	s.X.Set(2, 0x1000)

	raw := Registers(&s, false, false)
	if raw[2].Name != "x2" {
		t.Errorf("raw name = %q, want x2", raw[2].Name)
	}
	if raw[2].Value != 0x1000 {
		t.Errorf("x2 value = %#x, want 0x1000", raw[2].Value)
	}

	abi := Registers(&s, true, false)
	if abi[2].Name != "sp" {
		t.Errorf("abi name = %q, want sp", abi[2].Name)
	}
}

func TestRegistersOmitsFloatUnlessRequested(t *testing.T) {
	var s hart.State
	if got := len(Registers(&s, false, false)); got != 32 {
		t.Errorf("len = %d, want 32 without float registers", got)
	}
	if got := len(Registers(&s, false, true)); got != 64 {
		t.Errorf("len = %d, want 64 with float registers", got)
	}
}

func TestDisassembleLabelsKnownOpcode(t *testing.T) {
	// ADDI x1, x0, 5 — opcode OP-IMM (0x13).
	word := uint32(5)<<20 | 0<<15 | 0<<12 | 1<<7 | 0x13
	line := Disassemble(word, 0x80000000, 4)
	if line.Address != 0x80000000 {
		t.Errorf("address = %#x, want 0x80000000", line.Address)
	}
	if line.Size != 4 {
		t.Errorf("size = %d, want 4", line.Size)
	}
	want := "op-imm   rd=1 rs1=0 rs2=0 imm=5"
	if line.Mnemonic != want {
		t.Errorf("mnemonic = %q, want %q", line.Mnemonic, want)
	}
}

func TestDisassembleLabelsReservedOpcode(t *testing.T) {
	// A major opcode with no handler: class bits all 1 (0x1F) with the
	// mandatory low two bits set gives word bits 6:0 = 0x7F.
	line := Disassemble(0x7F, 0, 4)
	want := "reserved(0x1f) rd=0 rs1=0 rs2=0 imm=0"
	if line.Mnemonic != want {
		t.Errorf("mnemonic = %q, want %q", line.Mnemonic, want)
	}
}
