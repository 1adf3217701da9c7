// rv32iss is the command-line front end for the RV32 instruction set
// simulator: load an ELF32 program, run it on one hart, and print an
// optional trace, exiting with a status reflecting the halt reason.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"rv32iss/internal/elfload"
	"rv32iss/internal/sim"
	"rv32iss/internal/trace"
)

func main() {
	var (
		memSize     string
		exitOnECall bool
		haltOnRsvd  bool
		disasm      bool
		abiNames    bool
		maxInstr    uint64
		enableZicsr bool
		enableF     bool
		enableC     bool
		monitor     bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&memSize, "mem", "0x100000", "internal RAM window size (hex or decimal)")
	flagSet.BoolVar(&exitOnECall, "exit-on-ecall", true, "treat ECALL as a program exit request")
	flagSet.BoolVar(&haltOnRsvd, "halt-on-reserved", true, "halt on a reserved/unimplemented instruction instead of trapping")
	flagSet.BoolVar(&disasm, "trace", false, "print a disassembly trace while running")
	flagSet.BoolVar(&abiNames, "abi-names", true, "use ABI register names (ra, sp, a0...) in register dumps")
	flagSet.Uint64Var(&maxInstr, "max-instructions", 0, "stop after this many retired instructions (0 = unlimited)")
	flagSet.BoolVar(&enableZicsr, "zicsr", true, "enable the Zicsr CSR extension")
	flagSet.BoolVar(&enableF, "f", true, "enable the F single-precision floating-point extension")
	flagSet.BoolVar(&enableC, "c", true, "enable the C compressed-instruction extension")
	flagSet.BoolVar(&monitor, "monitor", false, "drop into an interactive step/continue monitor after loading")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: rv32iss [flags] program.elf")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	filename := flagSet.Arg(0)
	if filename == "" {
		flagSet.Usage()
		os.Exit(1)
	}

	size, err := parseSizeFlag(memSize)
	if err != nil {
		fmt.Printf("Invalid --mem: %v\n", err)
		os.Exit(1)
	}

	cfg := sim.Config{
		ExitOnECall:        exitOnECall,
		HaltOnReserved:     haltOnRsvd,
		DisassembleRuntime: disasm,
		UseABINames:        abiNames,
		MaxInstructions:    maxInstr,
		EnableZicsr:        enableZicsr,
		EnableF:            enableF,
		EnableC:            enableC,
	}
	if disasm {
		cfg.TraceStream = os.Stdout
	}

	s := sim.New(1, size, cfg)

	img, err := elfload.Load(filename, s.Harts[0].Bus)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", filename, err)
		os.Exit(1)
	}
	s.Harts[0].State.PC = img.Entry
	s.SetStartAddress(img.Entry)

	if monitor {
		runMonitor(s, abiNames)
		return
	}

	reason, err := s.Run(0)
	if err != nil {
		fmt.Printf("Execution error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Halted: %s (pc=%#08x, instret=%d)\n", reason, s.PCVal(0), s.Harts[0].Core.InstRetired)
	switch reason {
	case sim.HaltMaxInstructions, sim.HaltReserved:
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func parseSizeFlag(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// runMonitor drops the terminal into raw mode and offers a minimal
// step/continue/registers REPL, the hook point a future Machine Monitor
// would attach to — not the full GUI-bound monitor itself, which this
// simulator does not build.
func runMonitor(s *sim.Sim, abiNames bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Println("monitor requires an interactive terminal")
		os.Exit(1)
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Printf("failed to enter raw mode: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(fd, oldState)

	h := s.Harts[0]
	reader := bufio.NewReader(os.Stdin)
	crlf := func(format string, args ...any) {
		fmt.Fprintf(os.Stdout, format+"\r\n", args...)
	}
	crlf("rv32iss monitor: s=step c=continue r=registers q=quit")

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case 's':
			pc := h.State.PC
			word, _, _ := h.Core.FetchInstruction(h.Core, pc)
			res, err := h.Core.Step()
			if err != nil {
				crlf("error: %v", err)
				continue
			}
			line := trace.Disassemble(word, pc, int(h.State.PC-pc))
			crlf("%#08x: %s  -> %s", line.Address, line.Mnemonic, res)
		case 'c':
			reason, err := s.Continue(0)
			if err != nil {
				crlf("error: %v", err)
				continue
			}
			crlf("halted: %s", reason)
		case 'r':
			for _, r := range trace.Registers(h.State, abiNames, false) {
				crlf("%-5s = %#08x", r.Name, r.Value)
			}
		case 'q':
			return
		}
	}
}

