package emulator

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i0nbeam/LC-3/cpu"
	"github.com/i0nbeam/LC-3/device"
)

// assemble parses source text with the emulator's predefined equates.
func assemble(t *testing.T, emu *Emulator, source string) (prog *cpu.Program) {
	t.Helper()

	asm := &cpu.Assembler{}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	prog, err := asm.Parse(strings.NewReader(source))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return
}

func TestRunHalt(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	out := &bytes.Buffer{}
	emu.Display = out

	image := []byte{0x30, 0x00, 0xF0, 0x25}
	origin, err := emu.LoadFrom(bytes.NewReader(image))
	assert.NoError(err)
	assert.Equal(uint16(0x3000), origin)

	err = emu.Run(context.Background())
	assert.NoError(err)
	assert.True(emu.Halted())
	assert.Equal("HALT\n", out.String())
}

func TestRunEcho(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	out := &bytes.Buffer{}
	emu.Display = out

	kb := &device.Buffer{}
	kb.Push('A')
	emu.SetKeyboard(kb)

	prog := assemble(t, emu, `
.orig $(PC_START)
	getc
	out
	halt
.end
`)
	emu.LoadProgram(prog)

	err := emu.Run(context.Background())
	assert.NoError(err)
	assert.Equal("AHALT\n", out.String())
	assert.Equal(uint16('A'), emu.Reg[cpu.R0])
}

func TestRunCancel(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	prog := assemble(t, emu, `
.orig x3000
spin:	brnzp spin
.end
`)
	emu.LoadProgram(prog)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.False(emu.Halted())
}

func TestRunFault(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	emu.Display = &bytes.Buffer{}

	// A reserved opcode at the start address.
	image := []byte{0x30, 0x00, 0xD0, 0x00}
	_, err := emu.LoadFrom(bytes.NewReader(image))
	assert.NoError(err)

	err = emu.Run(context.Background())
	assert.ErrorIs(err, cpu.ErrReserved(0))

	var fault *ErrRuntime
	if assert.ErrorAs(err, &fault) {
		assert.Equal(uint16(0x3000), fault.PC)
	}
}

func TestDefines(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	defines := map[string]string{}
	for equ, value := range emu.Defines() {
		defines[equ] = value
	}

	assert.Equal("0x10000", defines["MEMORY_MAX"])
	assert.Equal("0x3000", defines["PC_START"])
	assert.Contains(defines, "KBSR")
	assert.Contains(defines, "KBDR")
}
