package cpu

import (
	"io"
)

// trap dispatches one of the six I/O service routines. The caller has
// already saved the return address in R7. An unknown vector is a fatal
// fault, same as a reserved opcode.
func (cpu *Cpu) trap(vector TrapVector) (err error) {
	switch vector {
	case TRAP_GETC:
		var key byte
		key, err = cpu.readKey()
		if err != nil {
			return
		}
		cpu.Reg[R0] = uint16(key)
		cpu.updateFlags(R0)

	case TRAP_OUT:
		err = cpu.putChar(byte(cpu.Reg[R0]))
		if err != nil {
			return
		}
		err = cpu.flush()

	case TRAP_PUTS:
		// One character per word, high byte ignored, zero terminated.
		for addr := cpu.Reg[R0]; ; addr++ {
			word := cpu.Mem.Read(addr)
			if word == 0 {
				break
			}
			err = cpu.putChar(byte(word))
			if err != nil {
				return
			}
		}
		err = cpu.flush()

	case TRAP_IN:
		_, err = io.WriteString(cpu.display(), "Enter a character:")
		if err != nil {
			return
		}
		var key byte
		key, err = cpu.readKey()
		if err != nil {
			return
		}
		err = cpu.putChar(key)
		if err != nil {
			return
		}
		err = cpu.flush()
		if err != nil {
			return
		}
		cpu.Reg[R0] = uint16(key)
		cpu.updateFlags(R0)

	case TRAP_PUTSP:
		// Two packed characters per word, low byte first; the high byte
		// is emitted only when nonzero. A zero word terminates.
		for addr := cpu.Reg[R0]; ; addr++ {
			word := cpu.Mem.Read(addr)
			if word == 0 {
				break
			}
			err = cpu.putChar(byte(word))
			if err != nil {
				return
			}
			if hi := byte(word >> 8); hi != 0 {
				err = cpu.putChar(hi)
				if err != nil {
					return
				}
			}
		}
		err = cpu.flush()

	case TRAP_HALT:
		_, err = io.WriteString(cpu.display(), "HALT\n")
		if err != nil {
			return
		}
		err = cpu.flush()
		cpu.halted = true

	default:
		err = ErrTrapVector(vector)
	}

	return
}

// display returns the attached output sink, discarding when unwired.
func (cpu *Cpu) display() io.Writer {
	if cpu.Display == nil {
		return io.Discard
	}
	return cpu.Display
}

func (cpu *Cpu) putChar(c byte) (err error) {
	_, err = cpu.display().Write([]byte{c})
	return
}

// flush forces buffered output out so program output is visible before
// the machine can halt or be interrupted.
func (cpu *Cpu) flush() (err error) {
	if f, ok := cpu.Display.(interface{ Flush() error }); ok {
		err = f.Flush()
	}
	return
}

// readKey blocks for one key from the input device.
func (cpu *Cpu) readKey() (key byte, err error) {
	if cpu.Mem.Keyboard == nil {
		err = ErrNoInput
		return
	}
	return cpu.Mem.Keyboard.ReadKey()
}
