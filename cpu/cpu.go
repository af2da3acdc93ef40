package cpu

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/i0nbeam/LC-3/device"
)

// PC_START is the fixed program start address (base of user space).
const PC_START = 0x3000

var _cpu_defines = map[string]string{
	"PC_START": fmt.Sprintf("%#x", PC_START),
	"KBSR":     fmt.Sprintf("%#x", MR_KBSR),
	"KBDR":     fmt.Sprintf("%#x", MR_KBDR),
}

// Cpu is the LC-3 machine state: register file, condition flag, program
// counter, and the memory image. Each Cpu is an independent machine;
// nothing is shared between instances.
type Cpu struct {
	Verbose bool // Set to log each executed instruction.

	Mem  *Memory   // The 64Ki-word address space.
	Reg  [8]uint16 // General-purpose registers r0-r7.
	PC   uint16    // Program counter.
	Cond Flag      // Condition flag; exactly one of n/z/p.

	// Display receives trap output one character at a time. If it also
	// implements Flush, the traps flush after every write burst.
	Display io.Writer

	Ticks int // Executed instruction counter.

	halted bool
}

// NewCpu creates a machine in its power-on state. The caller attaches a
// Display and a keyboard before running programs that perform I/O.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{Mem: NewMemory()}
	cpu.Reset()
	return
}

// Defines returns the architectural constants by name, for the
// assembler's predefined equates.
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// SetKeyboard attaches the input device behind both the memory-mapped
// keyboard registers and the input traps.
func (cpu *Cpu) SetKeyboard(kb device.Keyboard) {
	cpu.Mem.Keyboard = kb
}

// Reset returns the machine to its power-on state: zeroed registers and
// memory, condition flag Z, and the program counter at PC_START.
func (cpu *Cpu) Reset() {
	clear(cpu.Reg[:])
	cpu.Mem.Reset()
	cpu.PC = PC_START
	cpu.Cond = FL_ZRO
	cpu.Ticks = 0
	cpu.halted = false
}

// Halted reports whether the machine has executed a HALT trap.
func (cpu *Cpu) Halted() bool {
	return cpu.halted
}

// String returns the current register state.
func (cpu *Cpu) String() (text string) {
	for n, val := range cpu.Reg {
		text += fmt.Sprintf("   r%d: %04x\n", n, val)
	}
	text += fmt.Sprintf("   pc: %04x\n", cpu.PC)
	text += fmt.Sprintf(" cond: %v\n", cpu.Cond)
	return
}

// Step runs a single fetch/decode/execute cycle: fetch the word at PC,
// advance PC, and execute. done is true once the machine has halted.
func (cpu *Cpu) Step() (done bool, err error) {
	if cpu.halted {
		done = true
		return
	}

	code := Code(cpu.Mem.Read(cpu.PC))
	cpu.PC++

	err = cpu.Execute(code)
	cpu.Ticks++
	done = cpu.halted

	return
}

// Execute runs a single decoded instruction against the machine state.
// The reserved opcodes (RES, RTI) are a fatal fault: the architecture
// defines no recovery for them, so the error must terminate the run.
func (cpu *Cpu) Execute(code Code) (err error) {
	if cpu.Verbose {
		log.Printf("%04x: %v", cpu.PC-1, code)
	}

	switch code.Op() {
	case OP_ADD:
		dr, sr1 := code.DR(), code.SR1()
		if code.ImmFlag() {
			cpu.Reg[dr] = cpu.Reg[sr1] + code.Imm5()
		} else {
			cpu.Reg[dr] = cpu.Reg[sr1] + cpu.Reg[code.SR2()]
		}
		cpu.updateFlags(dr)

	case OP_AND:
		dr, sr1 := code.DR(), code.SR1()
		if code.ImmFlag() {
			cpu.Reg[dr] = cpu.Reg[sr1] & code.Imm5()
		} else {
			cpu.Reg[dr] = cpu.Reg[sr1] & cpu.Reg[code.SR2()]
		}
		cpu.updateFlags(dr)

	case OP_NOT:
		dr := code.DR()
		cpu.Reg[dr] = ^cpu.Reg[code.SR1()]
		cpu.updateFlags(dr)

	case OP_BR:
		if code.CondMask()&cpu.Cond != 0 {
			cpu.PC += code.PCOffset9()
		}

	case OP_JMP:
		cpu.PC = cpu.Reg[code.BaseR()]

	case OP_JSR:
		// R7 is written before the base register is read, so JSRR
		// through r7 jumps to the saved return address.
		cpu.Reg[R7] = cpu.PC
		if code.LongFlag() {
			cpu.PC += code.PCOffset11()
		} else {
			cpu.PC = cpu.Reg[code.BaseR()]
		}

	case OP_LD:
		dr := code.DR()
		cpu.Reg[dr] = cpu.Mem.Read(cpu.PC + code.PCOffset9())
		cpu.updateFlags(dr)

	case OP_LDI:
		dr := code.DR()
		cpu.Reg[dr] = cpu.Mem.Read(cpu.Mem.Read(cpu.PC + code.PCOffset9()))
		cpu.updateFlags(dr)

	case OP_LDR:
		dr := code.DR()
		cpu.Reg[dr] = cpu.Mem.Read(cpu.Reg[code.BaseR()] + code.Offset6())
		cpu.updateFlags(dr)

	case OP_LEA:
		dr := code.DR()
		cpu.Reg[dr] = cpu.PC + code.PCOffset9()
		cpu.updateFlags(dr)

	case OP_ST:
		cpu.Mem.Write(cpu.PC+code.PCOffset9(), cpu.Reg[code.DR()])

	case OP_STI:
		cpu.Mem.Write(cpu.Mem.Read(cpu.PC+code.PCOffset9()), cpu.Reg[code.DR()])

	case OP_STR:
		cpu.Mem.Write(cpu.Reg[code.BaseR()]+code.Offset6(), cpu.Reg[code.DR()])

	case OP_TRAP:
		cpu.Reg[R7] = cpu.PC
		err = cpu.trap(code.Trap())

	case OP_RES, OP_RTI:
		err = ErrReserved(code)
	}

	return
}

// updateFlags sets the condition flag from the sign of register r.
func (cpu *Cpu) updateFlags(r uint16) {
	switch {
	case cpu.Reg[r] == 0:
		cpu.Cond = FL_ZRO
	case cpu.Reg[r]>>15 != 0:
		cpu.Cond = FL_NEG
	default:
		cpu.Cond = FL_POS
	}
}
