// Package elfload loads little-endian RISC-V ELF32 executables into a
// memory bus. Per the simulator's own scope boundary, ELF parsing is an
// external collaborator's job — this package is a thin adapter over the
// standard library's debug/elf, consuming only the contract the core
// cares about: loadable segment bytes, the entry point, and an optional
// symbol table for diagnostic disassembly.
package elfload

import (
	"debug/elf"
	"fmt"

	"rv32iss/internal/membus"
)

// Symbol is a single entry from the optional symbol table, kept only for
// diagnostic disassembly (e.g. annotating a trace with function names).
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
}

// Image is the result of loading an ELF32 file: its entry point and any
// symbols the file carried.
type Image struct {
	Entry   uint32
	Symbols []Symbol
}

// Load reads the ELF32-LE file at path, copies every PT_LOAD segment into
// bus at its virtual address (p_vaddr), and returns the entry point and symbol
// table.
func Load(path string, bus *membus.Bus) (Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open elf %q: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return Image{}, fmt.Errorf("elf %q: expected ELFCLASS32, got %s", path, f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return Image{}, fmt.Errorf("elf %q: expected EM_RISCV, got %s", path, f.Machine)
	}
	if f.ByteOrder.String() != "LittleEndian" {
		return Image{}, fmt.Errorf("elf %q: expected little-endian byte order", path)
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return Image{}, fmt.Errorf("elf %q: read segment at %#x: %w", path, prog.Vaddr, err)
		}
		bus.LoadBytes(uint32(prog.Vaddr), data)
		// Filesz < Memsz (a .bss tail) is already zero: LoadBytes only
		// copies the file-backed bytes, and the bus starts zeroed.
	}

	var symbols []Symbol
	if syms, err := f.Symbols(); err == nil {
		for _, s := range syms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC && elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
				continue
			}
			symbols = append(symbols, Symbol{Name: s.Name, Value: uint32(s.Value), Size: uint32(s.Size)})
		}
	}

	return Image{Entry: uint32(f.Entry), Symbols: symbols}, nil
}
