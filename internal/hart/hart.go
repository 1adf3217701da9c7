// Package hart holds the architectural state of a single RV32 hardware
// thread: the integer register file, program counter, and the CSR address
// space that the Zicsr core reads and writes.
package hart

// Register name tables, mirroring the rmap_str/xmap_str pair the reference
// simulator keeps so a hart can be queried by either its ABI name (ra, sp,
// a0...) or its raw name (x0...x31).
var (
	ABINames = [32]string{
		"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
		"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
		"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
		"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
	}

	RawNames = [32]string{
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
		"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
		"x24", "x25", "x26", "x27", "x28", "x29", "x30", "x31",
	}
)

// CSR addresses implemented by the Zicsr core. Unlisted addresses are
// unimplemented and access_csr reports them as such.
const (
	CSRFflags    = 0x001
	CSRFrm       = 0x002
	CSRFcsr      = 0x003
	CSRMstatus   = 0x300
	CSRMisa      = 0x301
	CSRMie       = 0x304
	CSRMtvec     = 0x305
	CSRMscratch  = 0x340
	CSRMepc      = 0x341
	CSRMcause    = 0x342
	CSRMtval     = 0x343
	CSRMip       = 0x344
	CSRMcycle    = 0xB00
	CSRMinstret  = 0xB02
	CSRMcycleh   = 0xB80
	CSRMinstreth = 0xB82
	CSRMtime     = 0xBC1 // non-standard, used by Southwell's rv32i model
	CSRMtimeh    = 0xBC2
	CSRMtimecmp  = 0xBC3
	CSRMtimecmph = 0xBC4
	CSRMvendorid = 0xF11
	CSRMarchid   = 0xF12
	CSRMimpid    = 0xF13
	CSRMhartid   = 0xF14
)

// mstatus bit positions this simulator models (M-mode only).
const (
	MstatusMIE  = 1 << 3
	MstatusMPIE = 1 << 7
)

// mip/mie bit positions for the three M-mode interrupt sources.
const (
	InterruptMSI = 1 << 3 // machine software interrupt
	InterruptMTI = 1 << 7 // machine timer interrupt
	InterruptMEI = 1 << 11 // machine external interrupt
)

// CSRSpaceSize is large enough to index any of the addresses above directly.
const CSRSpaceSize = 0x1000

// Regs is the plain integer register file. x0 is stored but every write to
// it is discarded by Set and every read returns zero, so callers never need
// to special-case it.
type Regs [32]uint32

// Get returns the value of register r, always 0 for r == 0.
func (r *Regs) Get(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return r[i&0x1f]
}

// Set writes value to register r; writes to x0 are silently discarded.
func (r *Regs) Set(i uint32, v uint32) {
	if i == 0 {
		return
	}
	r[i&0x1f] = v
}

// FRegs is the F-extension register file: 32 single-precision values, each
// held as its raw 32-bit pattern (there are no wider lanes and no NaN-boxing,
// since this simulator only implements single precision).
type FRegs [32]uint32

func (r *FRegs) Get(i uint32) uint32 { return r[i&0x1f] }
func (r *FRegs) Set(i uint32, v uint32) { r[i&0x1f] = v }

// State is the complete, copyable snapshot of one hart: everything
// rv32_get_cpu_state/rv32_set_cpu_state need to capture and restore.
type State struct {
	X    Regs
	F    FRegs
	PC   uint32
	CSR  [CSRSpaceSize]uint32
	Priv uint32 // privilege level; always machine (3) in this build
}

// Reset restores a hart to its power-on state: PC at resetVector, all
// integer and float registers zeroed, privilege set to machine mode, and
// every CSR cleared, the read-only identification registers included.
func (s *State) Reset(resetVector uint32) {
	*s = State{PC: resetVector, Priv: 3}
}
