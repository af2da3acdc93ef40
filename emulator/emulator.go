// Package emulator wraps the machine core with host concerns: image
// files, the process display, cancellation, and fault reporting.
package emulator

import (
	"context"
	"io"
	"iter"
	"log"
	"maps"
	"os"

	"github.com/i0nbeam/LC-3/cpu"
	"github.com/i0nbeam/LC-3/device"
	"github.com/i0nbeam/LC-3/internal"
)

var _emulator_defines = map[string]string{
	"MEMORY_MAX": "0x10000",
}

// Emulator runs LC-3 images on a machine core wired to host devices.
type Emulator struct {
	Verbose bool

	*cpu.Cpu
}

// NewEmulator returns a machine writing its output to stdout. Attach an
// input device with SetKeyboard before running programs that read keys.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{Cpu: cpu.NewCpu()}
	emu.Display = os.Stdout
	return
}

// Defines iterates the predefined assembler equates: the emulator's own
// plus the machine core's.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines), emu.Cpu.Defines())
}

// SetKeyboard attaches the input device.
func (emu *Emulator) SetKeyboard(kb device.Keyboard) {
	emu.Cpu.SetKeyboard(kb)
}

// LoadImage loads an image file into memory.
func (emu *Emulator) LoadImage(path string) (origin uint16, err error) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	return emu.LoadFrom(file)
}

// LoadFrom loads an image stream into memory.
func (emu *Emulator) LoadFrom(r io.Reader) (origin uint16, err error) {
	origin, err = cpu.LoadImage(emu.Mem, r)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("loaded image at %#04x", origin)
	}

	return
}

// LoadProgram writes an assembled program into memory at its origin.
func (emu *Emulator) LoadProgram(prog *cpu.Program) {
	for addr, code := range prog.Codes() {
		emu.Mem.Write(addr, uint16(code))
	}
}

// Run executes cycles until the machine halts, the context is
// cancelled, or a fault occurs. Faults carry the faulting instruction's
// address.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	for done := emu.Halted(); !done; {
		if err = ctx.Err(); err != nil {
			return
		}

		pc := emu.PC
		done, err = emu.Step()
		if err != nil {
			err = &ErrRuntime{PC: pc, Err: err}
			return
		}
	}

	return
}
