package elfload

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"rv32iss/internal/membus"
)

// buildELF32 assembles the smallest valid little-endian ELF32 file with one
// PT_LOAD segment, by hand, so the loader can be exercised without a real
// toolchain-produced binary on disk.
func buildELF32(machine uint16, class byte, entry, vaddr uint32, seg []byte) []byte {
	const ehsize = 52
	const phsize = 32
	phoff := uint32(ehsize)
	dataOff := uint32(ehsize + phsize)

	buf := make([]byte, dataOff+uint32(len(seg)))

	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = class // EI_CLASS
	buf[5] = 1     // EI_DATA: little-endian
	buf[6] = 1     // EI_VERSION

	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)       // e_type: ET_EXEC
	le.PutUint16(buf[18:], machine) // e_machine
	le.PutUint32(buf[20:], 1)       // e_version
	le.PutUint32(buf[24:], entry)   // e_entry
	le.PutUint32(buf[28:], phoff)   // e_phoff
	le.PutUint32(buf[32:], 0)       // e_shoff
	le.PutUint32(buf[36:], 0)       // e_flags
	le.PutUint16(buf[40:], ehsize)  // e_ehsize
	le.PutUint16(buf[42:], phsize)  // e_phentsize
	le.PutUint16(buf[44:], 1)       // e_phnum
	le.PutUint16(buf[46:], 0)       // e_shentsize
	le.PutUint16(buf[48:], 0)       // e_shnum
	le.PutUint16(buf[50:], 0)       // e_shstrndx

	ph := buf[phoff:]
	le.PutUint32(ph[0:], 1)                // p_type: PT_LOAD
	le.PutUint32(ph[4:], dataOff)           // p_offset
	le.PutUint32(ph[8:], vaddr)             // p_vaddr
	le.PutUint32(ph[12:], vaddr)            // p_paddr
	le.PutUint32(ph[16:], uint32(len(seg))) // p_filesz
	le.PutUint32(ph[20:], uint32(len(seg))) // p_memsz
	le.PutUint32(ph[24:], 5)                // p_flags: R+X
	le.PutUint32(ph[28:], 4)                // p_align

	copy(buf[dataOff:], seg)
	return buf
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const emRISCV = 243
const elfclass32 = 1
const elfclass64 = 2

func TestLoadPlacesSegmentAndReportsEntry(t *testing.T) {
	seg := []byte{0x93, 0x00, 0x10, 0x00} // addi x1, x0, 1
	path := writeTemp(t, "prog.elf", buildELF32(emRISCV, elfclass32, 0x1004, 0x1000, seg))

	bus := membus.New(0x10000)
	img, err := Load(path, bus)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Entry != 0x1004 {
		t.Errorf("entry = %#x, want 0x1004", img.Entry)
	}
	word, fault := bus.Read(0x1000, membus.Word)
	if fault {
		t.Fatal("unexpected fault reading loaded segment")
	}
	if word != 0x00100093 {
		t.Errorf("loaded word = %#08x, want 0x00100093", word)
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	path := writeTemp(t, "wrong-machine.elf", buildELF32(0x3E, elfclass32, 0, 0x1000, []byte{0, 0, 0, 0})) // EM_X86_64
	bus := membus.New(0x10000)
	if _, err := Load(path, bus); err == nil {
		t.Error("expected an error loading a non-RISC-V ELF")
	}
}

func TestLoadRejectsWrongClass(t *testing.T) {
	path := writeTemp(t, "elf64.elf", buildELF32(emRISCV, elfclass64, 0, 0x1000, []byte{0, 0, 0, 0}))
	bus := membus.New(0x10000)
	if _, err := Load(path, bus); err == nil {
		t.Error("expected an error loading an ELFCLASS64 file")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	bus := membus.New(0x1000)
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.elf"), bus); err == nil {
		t.Error("expected an error loading a nonexistent file")
	}
}
