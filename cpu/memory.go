package cpu

import (
	"github.com/i0nbeam/LC-3/device"
)

// MEMORY_MAX is the number of addressable words.
const MEMORY_MAX = 1 << 16

// Memory-mapped device register addresses.
const (
	MR_KBSR = 0xFE00 // keyboard status
	MR_KBDR = 0xFE02 // keyboard data
)

// Memory is the flat 64Ki-word address space. Every 16-bit address is
// legal; address arithmetic wraps by construction of the address type.
//
// Reads of the keyboard status register poll the attached input device;
// all other cells are plain storage.
type Memory struct {
	// Keyboard is the input device behind the KBSR/KBDR registers.
	// When nil, status reads always report not-ready.
	Keyboard device.Keyboard

	cells [MEMORY_MAX]uint16
}

// NewMemory creates a zeroed memory with no input device attached.
func NewMemory() (mem *Memory) {
	return &Memory{}
}

// Reset zeroes every cell.
func (mem *Memory) Reset() {
	clear(mem.cells[:])
}

// Read returns the word at addr. Reading the keyboard status register
// first polls the input device: a pending key is latched into the data
// register and bit 15 of the status word is set, otherwise the status
// word is cleared.
func (mem *Memory) Read(addr uint16) uint16 {
	if addr == MR_KBSR {
		mem.pollKeyboard()
	}
	return mem.cells[addr]
}

// Write stores value at addr. Writes are always verbatim, including the
// device register addresses.
func (mem *Memory) Write(addr, value uint16) {
	mem.cells[addr] = value
}

func (mem *Memory) pollKeyboard() {
	if mem.Keyboard == nil || !mem.Keyboard.Poll() {
		mem.cells[MR_KBSR] = 0
		return
	}

	key, err := mem.Keyboard.ReadKey()
	if err != nil {
		mem.cells[MR_KBSR] = 0
		return
	}

	mem.cells[MR_KBSR] = 1 << 15
	mem.cells[MR_KBDR] = uint16(key)
}
