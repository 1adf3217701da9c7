// Package snapshot implements rv32_get_cpu_state/rv32_set_cpu_state: an
// opaque, versioned capture of a hart's full architectural state plus the
// memory it addresses, and gzip-compressed save/restore to disk for
// regression replay. The on-disk format (magic, version, raw hart state and
// counters, gzip-compressed memory image) is adapted directly from the teacher's own snapshot file format.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"rv32iss/internal/hart"
)

const (
	magic   = "RV32"
	version = 1
)

// State is a copyable capture of one hart plus the memory window it
// addresses — the value rv32_get_cpu_state returns and
// rv32_set_cpu_state consumes.
type State struct {
	Hart        hart.State
	Cycles      uint64
	InstRetired uint64
	Memory      []byte
}

// Take captures h's register/CSR state (by value, so later mutation of h
// does not alias the snapshot), the retired-instruction/cycle counters,
// and a copy of mem.
func Take(h *hart.State, cycles, instRetired uint64, mem []byte) State {
	memCopy := make([]byte, len(mem))
	copy(memCopy, mem)
	return State{Hart: *h, Cycles: cycles, InstRetired: instRetired, Memory: memCopy}
}

// Restore copies a previously-taken State back into h and mem. It does not
// touch the cycle/retired-instruction counters: the caller restores
// s.Cycles and s.InstRetired into its own Core. mem must already be sized to match len(s.Memory); a
// mismatch is the caller's configuration error, not something this
// package can reconcile.
func Restore(s State, h *hart.State, mem []byte) error {
	if len(s.Memory) != len(mem) {
		return fmt.Errorf("snapshot memory size %d does not match bus size %d", len(s.Memory), len(mem))
	}
	*h = s.Hart
	copy(mem, s.Memory)
	return nil
}

// SaveToFile writes s to path, framed with a magic and version header so
// LoadFromFile can reject foreign or stale files. The hart state and
// counters are written uncompressed; only the memory image is gzip-compressed.
func SaveToFile(s State, path string) error {
	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.LittleEndian, uint32(version))

	if err := binary.Write(&buf, binary.LittleEndian, s.Hart); err != nil {
		return fmt.Errorf("encoding hart state: %w", err)
	}
	binary.Write(&buf, binary.LittleEndian, s.Cycles)
	binary.Write(&buf, binary.LittleEndian, s.InstRetired)

	binary.Write(&buf, binary.LittleEndian, uint32(len(s.Memory)))

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(s.Memory); err != nil {
		return fmt.Errorf("compressing memory: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip: %w", err)
	}
	buf.Write(compressed.Bytes())

	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadFromFile reads and decompresses a snapshot previously written by
// SaveToFile.
func LoadFromFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	r := bytes.NewReader(data)

	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(r, gotMagic); err != nil {
		return State{}, fmt.Errorf("reading magic: %w", err)
	}
	if string(gotMagic) != magic {
		return State{}, fmt.Errorf("invalid snapshot magic: %q", string(gotMagic))
	}

	var ver uint32
	if err := binary.Read(r, binary.LittleEndian, &ver); err != nil {
		return State{}, fmt.Errorf("reading version: %w", err)
	}
	if ver != version {
		return State{}, fmt.Errorf("unsupported snapshot version: %d", ver)
	}

	var h hart.State
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return State{}, fmt.Errorf("reading hart state: %w", err)
	}

	var cycles, instRetired uint64
	if err := binary.Read(r, binary.LittleEndian, &cycles); err != nil {
		return State{}, fmt.Errorf("reading cycle count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &instRetired); err != nil {
		return State{}, fmt.Errorf("reading retired-instruction count: %w", err)
	}

	var memLen uint32
	if err := binary.Read(r, binary.LittleEndian, &memLen); err != nil {
		return State{}, fmt.Errorf("reading memory length: %w", err)
	}

	remaining := data[len(data)-r.Len():]
	gz, err := gzip.NewReader(bytes.NewReader(remaining))
	if err != nil {
		return State{}, fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gz.Close()

	mem := make([]byte, memLen)
	if _, err := io.ReadFull(gz, mem); err != nil {
		return State{}, fmt.Errorf("decompressing memory: %w", err)
	}

	return State{Hart: h, Cycles: cycles, InstRetired: instRetired, Memory: mem}, nil
}
