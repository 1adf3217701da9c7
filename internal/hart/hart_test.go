package hart

import "testing"

func TestX0AlwaysReadsZero(t *testing.T) {
	var r Regs
	r.Set(0, 0xDEADBEEF)
	if got := r.Get(0); got != 0 {
		t.Errorf("x0 = %#x after write, want 0", got)
	}
}

func TestResetClearsRegistersAndSetsPC(t *testing.T) {
	var s State
	s.X.Set(5, 0x1234)
	s.CSR[CSRMscratch] = 0xFFFF
	s.Reset(0x80000000)

	if s.PC != 0x80000000 {
		t.Errorf("pc = %#x, want 0x80000000", s.PC)
	}
	if got := s.X.Get(5); got != 0 {
		t.Errorf("x5 = %#x after reset, want 0", got)
	}
	if s.CSR[CSRMscratch] != 0 {
		t.Errorf("mscratch = %#x after reset, want 0", s.CSR[CSRMscratch])
	}
	if s.Priv != 3 {
		t.Errorf("priv = %d after reset, want 3 (machine mode)", s.Priv)
	}
}

func TestFRegsRoundTrip(t *testing.T) {
	var f FRegs
	f.Set(3, 0x40490FDB) // pi as float32 bits
	if got := f.Get(3); got != 0x40490FDB {
		t.Errorf("f3 = %#x, want 0x40490fdb", got)
	}
}
