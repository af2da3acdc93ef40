package cpu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i0nbeam/LC-3/device"
)

// assemble parses source text, failing the test on error.
func assemble(t *testing.T, source string) (prog *Program) {
	t.Helper()

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return
}

// run loads a program and executes until halt, with a cycle cap so a
// broken branch cannot hang the test.
func run(t *testing.T, prog *Program, keys ...byte) (cpu *Cpu, output string) {
	t.Helper()

	cpu = NewCpu()
	out := &bytes.Buffer{}
	cpu.Display = out

	kb := &device.Buffer{}
	kb.Push(keys...)
	cpu.SetKeyboard(kb)

	for addr, code := range prog.Codes() {
		cpu.Mem.Write(addr, uint16(code))
	}

	for range 10000 {
		done, err := cpu.Step()
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if done {
			output = out.String()
			return
		}
	}
	t.Fatal("run: no halt within cycle cap")
	return
}

func TestAssembleHello(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
; Classic first program.
.orig x3000
	lea r0, msg
	puts
	halt
msg: .stringz "Hello, World!"
.end
`)
	assert.Equal(uint16(0x3000), prog.Origin)

	_, output := run(t, prog)
	assert.Equal("Hello, World!HALT\n", output)
}

func TestAssembleLoop(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig x3000
	and r1, r1, #0
	add r1, r1, #5
loop:	add r1, r1, #-1
	add r2, r2, #1
	brp loop
	halt
.end
`)

	cpu, _ := run(t, prog)
	assert.Equal(uint16(0), cpu.Reg[R1])
	assert.Equal(uint16(5), cpu.Reg[R2])
}

func TestAssembleSubroutine(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig x3000
	jsr sub
	halt
sub:	and r2, r2, #0
	add r2, r2, #7
	ret
.end
`)

	cpu, _ := run(t, prog)
	assert.Equal(uint16(7), cpu.Reg[R2])
	assert.Equal(uint16(0x3001), cpu.Reg[R7])
}

func TestAssembleData(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig x3000
	ld r0, ptr
	ld r1, char
	halt
ptr:	.fill data
char:	.fill 'A'
data:	.blkw 2
.end
`)

	// .fill with a label resolves to its load address.
	words := prog.Binary()
	assert.Equal(uint16(0x3005), words[3])
	assert.Equal(uint16('A'), words[4])
	// .blkw reserves zeroed words.
	assert.Equal(uint16(0), words[5])
	assert.Equal(uint16(0), words[6])

	cpu, _ := run(t, prog)
	assert.Equal(uint16(0x3005), cpu.Reg[R0])
	assert.Equal(uint16('A'), cpu.Reg[R1])
}

func TestAssembleEquates(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig $(PC_START)
.equ FIVE #5
	and r0, r0, #0
	add r0, r0, FIVE
	ld r1, status
	halt
status:	.fill KBSR
extra:	.fill $(0x30 + FIVE)
.end
`)
	assert.Equal(uint16(0x3000), prog.Origin)

	words := prog.Binary()
	assert.Equal(uint16(0xFE00), words[4])
	assert.Equal(uint16(0x35), words[5])

	cpu, _ := run(t, prog)
	assert.Equal(uint16(5), cpu.Reg[R0])
	assert.Equal(uint16(0xFE00), cpu.Reg[R1])
}

func TestAssemblePredefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("START", "x4000")

	prog, err := asm.Parse(strings.NewReader(`
.orig START
	halt
.end
`))
	assert.NoError(err)
	assert.Equal(uint16(0x4000), prog.Origin)
}

func TestAssembleTrapAliases(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig x3000
	getc
	out
	puts
	in
	putsp
	halt
	trap x21
.end
`)

	words := prog.Binary()
	assert.Equal([]uint16{0xF020, 0xF021, 0xF022, 0xF023, 0xF024, 0xF025, 0xF021}, words)
}

func TestAssembleBranchRange(t *testing.T) {
	assert := assert.New(t)

	// A label beyond the 9-bit branch reach fails at link time.
	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(`
.orig x3000
	brnzp far
	.blkw 300
far:	halt
.end
`))
	assert.ErrorIs(err, ErrOffsetRange)
}

func TestAssembleErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		source string
		expect error
	}){
		{"no_origin", "add r0, r0, #1\n", ErrOriginMissing},
		{"origin_only_comment", "; nothing\n", ErrOriginMissing},
		{"origin_twice", ".orig x3000\n.orig x4000\n", ErrOriginDuplicate},
		{"bad_opcode", ".orig x3000\nfrob r0\n", ErrOpcodeInvalid},
		{"bad_branch_cond", ".orig x3000\nbrx loop\n", ErrOpcodeInvalid},
		{"missing_operand", ".orig x3000\nadd r0, r0\n", ErrOperandMissing},
		{"extra_operand", ".orig x3000\nnot r0, r1, r2\n", ErrOperandExtra},
		{"bad_register", ".orig x3000\nadd r8, r0, #1\n", ErrRegisterInvalid},
		{"imm_too_big", ".orig x3000\nadd r0, r0, #16\n", ErrImmediateRange},
		{"imm_too_small", ".orig x3000\nadd r0, r0, #-17\n", ErrImmediateRange},
		{"offset_too_big", ".orig x3000\nldr r0, r1, #32\n", ErrOffsetRange},
		{"vector_too_big", ".orig x3000\ntrap x100\n", ErrVectorRange},
		{"blkw_zero", ".orig x3000\n.blkw 0\n", ErrBlockSize},
		{"bad_string", ".orig x3000\n.stringz hello\n", ErrStringSyntax},
		{"equ_args", ".orig x3000\n.equ FIVE\n", ErrEquateSyntax},
		{"equ_twice", ".orig x3000\n.equ A 1\n.equ A 2\n", ErrEquateDuplicate},
		{"label_twice", ".orig x3000\na: halt\na: halt\n", ErrLabelDuplicate},
		{"label_before_origin", "a: halt\n", ErrOriginMissing},
		{"not_a_number", ".orig xGGGG\n", ErrParseNumber("xGGGG")},
	}

	for _, entry := range table {
		asm := &Assembler{}
		_, err := asm.Parse(strings.NewReader(entry.source))
		assert.ErrorIs(err, entry.expect, entry.name)
	}
}

func TestAssembleLabelMissing(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(".orig x3000\nbrnzp nowhere\n"))
	assert.Error(err)

	var missing ErrLabelMissing
	assert.True(errors.As(err, &missing))
	assert.Equal("nowhere", string(missing))
}

func TestAssembleSyntaxContext(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(".orig x3000\nhalt\nfrob r0\n"))
	assert.Error(err)

	var syntax *ErrSyntax
	assert.True(errors.As(err, &syntax))
	assert.Equal(3, syntax.LineNo)
	assert.Contains(syntax.Line, "frob")
}

func TestAssembleImageRoundTrip(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, `
.orig x3000
	lea r0, msg
	puts
	halt
msg: .stringz "ok"
.end
`)

	mem := NewMemory()
	origin, err := LoadImage(mem, bytes.NewReader(prog.Image()))
	assert.NoError(err)
	assert.Equal(prog.Origin, origin)

	for addr, code := range prog.Codes() {
		assert.Equal(uint16(code), mem.Read(addr))
	}
}

func TestAssembleKeyboardPolling(t *testing.T) {
	assert := assert.New(t)

	// Poll the status register until a key arrives, then read it.
	prog := assemble(t, `
.orig x3000
wait:	ldi r1, kbsr
	brzp wait
	ldi r0, kbdr
	halt
kbsr:	.fill KBSR
kbdr:	.fill KBDR
.end
`)

	cpu, _ := run(t, prog, 'Z')
	assert.Equal(uint16('Z'), cpu.Reg[R0])
}
