// Package sim is the outer co-simulation surface: run(cfg), read_mem/
// write_mem, reset_cpu, regi_val/pc_val, and the save/restore and
// callback-registration API the reference simulator exposes to an
// embedding program. It owns the array of harts, wires up whichever
// extensions a Config enables, and drives the round-robin multi-hart
// scheduler with golang.org/x/sync/errgroup the way the teacher's own
// concurrent subsystems fan work out and fan the first error back in.
package sim

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"rv32iss/internal/compressed"
	"rv32iss/internal/csr"
	"rv32iss/internal/fpu"
	"rv32iss/internal/hart"
	"rv32iss/internal/isa"
	"rv32iss/internal/membus"
	"rv32iss/internal/snapshot"
	"rv32iss/internal/trace"
)

// Config bundles every option run() recognises.
type Config struct {
	StartAddress    uint32
	ResetVector     uint32
	ExitOnECall     bool
	HaltOnReserved  bool
	DisassembleRuntime bool
	UseABINames     bool
	MaxInstructions uint64 // 0 = unlimited
	TraceStream     io.Writer

	ExtMemCallback membus.ExtCallback
	ExtIntCallback csr.IntCallback

	// ExitAddress, if HasExitAddress, causes run to stop cleanly when PC
	// reaches it (e.g. a test harness's _exit stub).
	ExitAddress    uint32
	HasExitAddress bool

	EnableZicsr bool
	EnableF     bool
	EnableC     bool
}

// HaltReason explains why run() returned.
type HaltReason int

const (
	HaltMaxInstructions HaltReason = iota
	HaltEBreak
	HaltReserved
	HaltExitAddress
	HaltECall
	HaltError
)

func (r HaltReason) String() string {
	switch r {
	case HaltMaxInstructions:
		return "max-instructions"
	case HaltEBreak:
		return "ebreak"
	case HaltReserved:
		return "reserved-instruction"
	case HaltExitAddress:
		return "exit-address"
	case HaltECall:
		return "ecall"
	default:
		return "error"
	}
}

// Hart bundles one hart's architectural state with its wired execution
// core and extension adapters.
type Hart struct {
	State *hart.State
	Bus   *membus.Bus
	Core  *isa.Core
	CSR   *csr.Core
	FPU   *fpu.Core
}

// Sim is the top-level simulator: an array of harts sharing a memory
// window size, following the reference simulator's "array of harts, size
// fixed at build time" CPU-state model.
type Sim struct {
	Harts []*Hart
	cfg   Config
}

// New builds a Sim with n harts, each given its own memSize-byte internal
// RAM window, wiring in whichever extensions cfg enables.
func New(n int, memSize uint32, cfg Config) *Sim {
	s := &Sim{cfg: cfg}
	for i := 0; i < n; i++ {
		st := &hart.State{}
		st.Reset(cfg.ResetVector)
		bus := membus.New(memSize)
		bus.RegisterExtCallback(cfg.ExtMemCallback)
		core := isa.NewCore(st, bus)
		core.ExitOnECall = cfg.ExitOnECall
		core.HaltOnReserved = cfg.HaltOnReserved
		if cfg.HasExitAddress {
			core.HasExitAddress = true
			core.ExitAddress = cfg.ExitAddress
		}

		h := &Hart{State: st, Bus: bus, Core: core}
		if cfg.EnableZicsr {
			h.CSR = csr.Attach(core, st)
			h.CSR.IntCallback = cfg.ExtIntCallback
		}
		if cfg.EnableF {
			h.FPU = fpu.Attach(core, st)
		}
		if cfg.EnableC {
			compressed.Attach(core)
		}
		s.Harts = append(s.Harts, h)
	}
	return s
}

// SetStartAddress overrides the address Run(hartID) sets PC to, for
// callers (e.g. an ELF loader) that only learn the real entry point after
// New has already built the Sim.
func (s *Sim) SetStartAddress(addr uint32) { s.cfg.StartAddress = addr }

// ResetCPU restores every hart to its power-on state and clears its
// memory window, per reset_cpu's contract.
func (s *Sim) ResetCPU() {
	for _, h := range s.Harts {
		h.State.Reset(s.cfg.ResetVector)
		h.Bus.Reset()
	}
}

// ReadMem/WriteMem give debuggers direct state access without advancing
// cycle counts, per the reference simulator's read_mem/write_mem contract.
func (s *Sim) ReadMem(hartID int, addr uint32, width membus.Width) (uint32, bool) {
	return s.Harts[hartID].Bus.Read(addr, width)
}

func (s *Sim) WriteMem(hartID int, addr uint32, width membus.Width, value uint32) bool {
	return s.Harts[hartID].Bus.Write(addr, width, value)
}

// RegiVal returns the value of integer register i on the given hart.
func (s *Sim) RegiVal(hartID int, i uint32) uint32 { return s.Harts[hartID].State.X.Get(i) }

// PCVal returns the program counter of the given hart.
func (s *Sim) PCVal(hartID int) uint32 { return s.Harts[hartID].State.PC }

// Snapshot captures hartID's full state for rv32_get_cpu_state.
func (s *Sim) Snapshot(hartID int) snapshot.State {
	h := s.Harts[hartID]
	return snapshot.Take(h.State, h.Core.Cycles, h.Core.InstRetired, h.Bus.RAMView())
}

// RestoreSnapshot installs a previously-captured State for
// rv32_set_cpu_state.
func (s *Sim) RestoreSnapshot(hartID int, snap snapshot.State) error {
	h := s.Harts[hartID]
	if err := snapshot.Restore(snap, h.State, h.Bus.RAMView()); err != nil {
		return err
	}
	h.Core.Cycles = snap.Cycles
	h.Core.InstRetired = snap.InstRetired
	return nil
}

// Run starts hartID at cfg's start address and executes until a halt
// condition fires, returning the reason. A single-hart Run is the common
// case; multi-hart programs use RunAll for the round-robin scheduler.
func (s *Sim) Run(hartID int) (HaltReason, error) {
	h := s.Harts[hartID]
	h.State.PC = s.cfg.StartAddress
	return s.runHart(h)
}

// Continue resumes hartID from its current PC instead of the configured
// start address, for a debugger that has already stepped a few
// instructions and now wants to run freely from where it stopped.
func (s *Sim) Continue(hartID int) (HaltReason, error) {
	return s.runHart(s.Harts[hartID])
}

func (s *Sim) runHart(h *Hart) (HaltReason, error) {
	for {
		if s.cfg.MaxInstructions != 0 && h.Core.InstRetired >= s.cfg.MaxInstructions {
			return HaltMaxInstructions, nil
		}
		if h.CSR != nil {
			h.CSR.CheckInterrupt()
		}

		pcBefore := h.State.PC
		wordBefore, _, _ := h.Core.FetchInstruction(h.Core, pcBefore)

		res, err := h.Core.Step()
		if err != nil {
			return HaltError, err
		}

		if s.cfg.DisassembleRuntime && s.cfg.TraceStream != nil {
			line := trace.Disassemble(wordBefore, pcBefore, int(h.State.PC-pcBefore))
			fmt.Fprintf(s.cfg.TraceStream, "%#08x: %s\n", line.Address, line.Mnemonic)
		}

		switch res {
		case isa.StepEBreak:
			return HaltEBreak, nil
		case isa.StepReserved:
			return HaltReserved, nil
		case isa.StepExitAddress:
			if s.cfg.HasExitAddress && h.State.PC == s.cfg.ExitAddress {
				return HaltExitAddress, nil
			}
			return HaltECall, nil
		}
	}
}

// RunAll starts every hart at its entry in startAddrs and runs each one to
// its own halt in a separate goroutine of an errgroup.Group, returning every
// hart's halt reason and the first error. The harts run concurrently; their
// instructions are not interleaved in round-robin quanta.
func (s *Sim) RunAll(startAddrs []uint32) ([]HaltReason, error) {
	reasons := make([]HaltReason, len(s.Harts))
	var g errgroup.Group
	for i, h := range s.Harts {
		i, h := i, h
		h.State.PC = startAddrs[i]
		g.Go(func() error {
			r, err := s.runHart(h)
			reasons[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return reasons, err
	}
	return reasons, nil
}
