package sim

import (
	"testing"

	"rv32iss/internal/membus"
)

func iType(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1&0x1F)<<15 | (funct3&0x7)<<12 | (rd&0x1F)<<7 | opcode
}

const (
	opcodeImm    = 0x13
	opcodeSystem = 0x73
)

func loadWords(bus *membus.Bus, at uint32, words []uint32) {
	for i, w := range words {
		bus.LoadBytes(at+uint32(i*4), []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)})
	}
}

// Scenario 1, driven through the full Sim/run(cfg) surface rather than a
// bare isa.Core, exercising Config, New, and Run together.
func TestRunAddiChainThroughSim(t *testing.T) {
	cfg := Config{
		StartAddress:   0x800,
		ResetVector:    0x800,
		ExitOnECall:    true,
		HaltOnReserved: true,
		EnableZicsr:    true,
	}
	s := New(1, 0x10000, cfg)
	loadWords(s.Harts[0].Bus, 0x800, []uint32{
		iType(opcodeImm, 0, 1, 0, 1),
		iType(opcodeImm, 0, 2, 1, 2),
		iType(opcodeImm, 0, 3, 2, 3),
		iType(opcodeSystem, 0, 0, 0, 1), // EBREAK
	})

	reason, err := s.Run(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != HaltEBreak {
		t.Fatalf("halt reason = %v, want %v", reason, HaltEBreak)
	}
	if got := s.RegiVal(0, 1); got != 1 {
		t.Errorf("x1 = %d, want 1", got)
	}
	if got := s.RegiVal(0, 3); got != 6 {
		t.Errorf("x3 = %d, want 6", got)
	}
	if s.PCVal(0) != 0x80C {
		t.Errorf("pc = %#x, want 0x80c (ebreak retires but leaves pc at its own address)", s.PCVal(0))
	}
}

func TestReadWriteMemDirect(t *testing.T) {
	s := New(1, 0x1000, Config{ResetVector: 0x80000000})
	if fault := s.WriteMem(0, 0x10, membus.Word, 0xCAFEBABE); fault {
		t.Fatal("unexpected fault writing memory")
	}
	got, fault := s.ReadMem(0, 0x10, membus.Word)
	if fault {
		t.Fatal("unexpected fault reading memory")
	}
	if got != 0xCAFEBABE {
		t.Errorf("read = %#x, want 0xcafebabe", got)
	}
}

func TestResetCPUClearsStateAndMemory(t *testing.T) {
	s := New(1, 0x1000, Config{ResetVector: 0x80000000})
	s.Harts[0].State.X.Set(1, 0x55)
	s.WriteMem(0, 0, membus.Word, 0x11223344)

	s.ResetCPU()

	if s.RegiVal(0, 1) != 0 {
		t.Error("x1 not cleared by ResetCPU")
	}
	if got, _ := s.ReadMem(0, 0, membus.Word); got != 0 {
		t.Error("memory not cleared by ResetCPU")
	}
	if s.PCVal(0) != 0x80000000 {
		t.Errorf("pc = %#x after reset, want reset vector 0x80000000", s.PCVal(0))
	}
}

func TestSnapshotRoundTripThroughSim(t *testing.T) {
	s := New(1, 0x1000, Config{ResetVector: 0x80000000})
	s.Harts[0].State.X.Set(4, 0xABCD)
	snap := s.Snapshot(0)

	s.Harts[0].State.X.Set(4, 0)
	if err := s.RestoreSnapshot(0, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.RegiVal(0, 4); got != 0xABCD {
		t.Errorf("x4 = %#x after restore, want 0xabcd", got)
	}
}

func TestContinueResumesFromCurrentPCNotStartAddress(t *testing.T) {
	cfg := Config{StartAddress: 0x800, ResetVector: 0x800}
	s := New(1, 0x1000, cfg)
	loadWords(s.Harts[0].Bus, 0x800, []uint32{
		iType(opcodeImm, 0, 1, 0, 1),
		iType(opcodeImm, 0, 1, 1, 1),
		iType(opcodeSystem, 0, 0, 0, 1), // EBREAK
	})

	// Single-step the first instruction by hand, the way a monitor does.
	if _, err := s.Harts[0].Core.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.RegiVal(0, 1); got != 1 {
		t.Fatalf("x1 = %d after one step, want 1", got)
	}

	reason, err := s.Continue(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != HaltEBreak {
		t.Fatalf("halt reason = %v, want %v", reason, HaltEBreak)
	}
	if got := s.RegiVal(0, 1); got != 2 {
		t.Errorf("x1 = %d after continue, want 2 (Continue must not restart from StartAddress)", got)
	}
}

func TestMaxInstructionsHalt(t *testing.T) {
	cfg := Config{StartAddress: 0x800, ResetVector: 0x800, MaxInstructions: 2}
	s := New(1, 0x1000, cfg)
	loadWords(s.Harts[0].Bus, 0x800, []uint32{
		iType(opcodeImm, 0, 1, 0, 1),
		iType(opcodeImm, 0, 1, 1, 1),
		iType(opcodeImm, 0, 1, 1, 1),
	})

	reason, err := s.Run(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != HaltMaxInstructions {
		t.Fatalf("halt reason = %v, want %v", reason, HaltMaxInstructions)
	}
	if got := s.RegiVal(0, 1); got != 2 {
		t.Errorf("x1 = %d, want 2 (only first two instructions should have run)", got)
	}
}
