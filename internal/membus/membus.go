// Package membus implements the simulator's memory subsystem: an internal
// RAM window that services aligned or unaligned byte/halfword/word access
// directly, plus a registered external callback for every address outside
// that window, following the same mapped-region shape the reference
// SystemBus uses for its memory-mapped I/O table, generalised from 32-bit
// fixed-width access to the 1/2/4-byte width parameter the ISA needs.
package membus

import (
	"encoding/binary"
	"fmt"
)

// Width is the byte width of a memory access.
type Width int

const (
	Byte     Width = 1
	Halfword Width = 2
	Word     Width = 4
)

// ExtCallback services an access to an address outside the internal RAM
// window. It must behave synchronously: on return, dataOut and fault are
// final. fault true means the simulator raises an access-fault trap and
// dataOut is ignored, matching the reference simulator's memory callback
// contract.
type ExtCallback func(addr uint32, width Width, isWrite bool, dataIn uint32) (dataOut uint32, fault bool)

// Bus is the internal-RAM-plus-external-callback memory subsystem. Unlike
// the teacher's SystemBus it has no page-mapped MMIO table of its own —
// every out-of-window address is delegated whole to a single external
// callback, per the simulator's role as a co-simulation shim rather than a
// machine with its own peripherals.
type Bus struct {
	ram  []byte
	ext  ExtCallback
	last uint32 // last access address, for fault reporting
}

// New allocates a Bus whose internal RAM window is [0, size).
func New(size uint32) *Bus {
	return &Bus{ram: make([]byte, size)}
}

// RegisterExtCallback installs fn as the handler for addresses outside the
// internal RAM window. Passing nil disables external memory entirely —
// any out-of-window access then faults.
func (b *Bus) RegisterExtCallback(fn ExtCallback) {
	b.ext = fn
}

// LastFaultAddr returns the address of the most recent access, for fault
// diagnostics (mtval), regardless of whether that access faulted.
func (b *Bus) LastFaultAddr() uint32 { return b.last }

func (b *Bus) inWindow(addr uint32, width Width) bool {
	end := uint64(addr) + uint64(width)
	return end <= uint64(len(b.ram))
}

// Read loads width bytes at addr. The second return value is true on a
// fault (out-of-window access with no callback registered, or a faulting
// callback).
func (b *Bus) Read(addr uint32, width Width) (uint32, bool) {
	b.last = addr
	if b.inWindow(addr, width) {
		return b.readRAM(addr, width), false
	}
	if b.ext == nil {
		return 0, true
	}
	v, fault := b.ext(addr, width, false, 0)
	return v, fault
}

// Write stores the low width bytes of value at addr. Returns true on fault.
func (b *Bus) Write(addr uint32, width Width, value uint32) bool {
	b.last = addr
	if b.inWindow(addr, width) {
		b.writeRAM(addr, width, value)
		return false
	}
	if b.ext == nil {
		return true
	}
	_, fault := b.ext(addr, width, true, value)
	return fault
}

func (b *Bus) readRAM(addr uint32, width Width) uint32 {
	switch width {
	case Byte:
		return uint32(b.ram[addr])
	case Halfword:
		return uint32(binary.LittleEndian.Uint16(b.ram[addr : addr+2]))
	default:
		return binary.LittleEndian.Uint32(b.ram[addr : addr+4])
	}
}

func (b *Bus) writeRAM(addr uint32, width Width, value uint32) {
	switch width {
	case Byte:
		b.ram[addr] = byte(value)
	case Halfword:
		binary.LittleEndian.PutUint16(b.ram[addr:addr+2], uint16(value))
	default:
		binary.LittleEndian.PutUint32(b.ram[addr:addr+4], value)
	}
}

// LoadBytes copies data verbatim into the internal RAM window starting at
// addr, used by the ELF loader to place PT_LOAD segment contents. It
// panics if the range falls (even partially) outside the window, since a
// program that doesn't fit is a configuration error, not a runtime fault.
func (b *Bus) LoadBytes(addr uint32, data []byte) {
	if uint64(addr)+uint64(len(data)) > uint64(len(b.ram)) {
		panic(fmt.Sprintf("membus: LoadBytes range %#x+%#x outside RAM window of %#x bytes", addr, len(data), len(b.ram)))
	}
	copy(b.ram[addr:], data)
}

// Reset clears the internal RAM window. External state reachable through
// the registered callback is the caller's responsibility.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0
	}
}

// Size reports the size of the internal RAM window in bytes.
func (b *Bus) Size() uint32 { return uint32(len(b.ram)) }

// RAMView exposes the internal RAM window directly for snapshot save/
// restore, which needs to copy (or be copied into) the whole window
// without going through the width-at-a-time Read/Write path.
func (b *Bus) RAMView() []byte { return b.ram }
