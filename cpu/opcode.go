package cpu

import (
	"fmt"
)

// Opcode is the 4-bit operation selector in bits 15-12 of an instruction
// word. The set is architecturally fixed at sixteen entries.
type Opcode uint16

const (
	OP_BR   = Opcode(0)  // conditional branch
	OP_ADD  = Opcode(1)  // add
	OP_LD   = Opcode(2)  // load
	OP_ST   = Opcode(3)  // store
	OP_JSR  = Opcode(4)  // jump to subroutine
	OP_AND  = Opcode(5)  // bitwise and
	OP_LDR  = Opcode(6)  // load base+offset
	OP_STR  = Opcode(7)  // store base+offset
	OP_RTI  = Opcode(8)  // return from interrupt (unimplemented)
	OP_NOT  = Opcode(9)  // bitwise complement
	OP_LDI  = Opcode(10) // load indirect
	OP_STI  = Opcode(11) // store indirect
	OP_JMP  = Opcode(12) // jump through register
	OP_RES  = Opcode(13) // reserved (unimplemented)
	OP_LEA  = Opcode(14) // load effective address
	OP_TRAP = Opcode(15) // trap service call
)

var opcodeName = [16]string{
	"BR", "ADD", "LD", "ST", "JSR", "AND", "LDR", "STR",
	"RTI", "NOT", "LDI", "STI", "JMP", "RES", "LEA", "TRAP",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeName) {
		return opcodeName[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint16(op))
}

// TrapVector selects a service routine from the trap table. The low byte
// of a TRAP instruction carries the vector.
type TrapVector uint16

const (
	TRAP_GETC  = TrapVector(0x20) // read one key, no echo
	TRAP_OUT   = TrapVector(0x21) // write one character
	TRAP_PUTS  = TrapVector(0x22) // write a word-per-character string
	TRAP_IN    = TrapVector(0x23) // prompt, read one key, echo
	TRAP_PUTSP = TrapVector(0x24) // write a packed byte-pair string
	TRAP_HALT  = TrapVector(0x25) // halt the machine
)

var trapName = map[TrapVector]string{
	TRAP_GETC:  "GETC",
	TRAP_OUT:   "OUT",
	TRAP_PUTS:  "PUTS",
	TRAP_IN:    "IN",
	TRAP_PUTSP: "PUTSP",
	TRAP_HALT:  "HALT",
}

func (tv TrapVector) String() string {
	name, ok := trapName[tv]
	if ok {
		return name
	}
	return fmt.Sprintf("x%02X", uint16(tv))
}

// Flag is the condition flag register. Exactly one flag is set at any
// time; the three bits line up with the BR instruction's condition mask.
type Flag uint16

const (
	FL_POS = Flag(1 << 0) // p
	FL_ZRO = Flag(1 << 1) // z
	FL_NEG = Flag(1 << 2) // n
)

func (fl Flag) String() (out string) {
	if fl&FL_NEG != 0 {
		out += "n"
	}
	if fl&FL_ZRO != 0 {
		out += "z"
	}
	if fl&FL_POS != 0 {
		out += "p"
	}
	return
}

// General-purpose register indexes. R7 is the link register by calling
// convention only; the hardware does not restrict it.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
)

// Code is a single 16-bit instruction word. Instructions are decoded once
// per fetch through the field accessors below and never stored.
type Code uint16

// Op returns the opcode from bits 15-12.
func (code Code) Op() Opcode {
	return Opcode(code >> 12)
}

// DR returns the destination (or store source) register from bits 11-9.
func (code Code) DR() uint16 {
	return uint16(code>>9) & 0x7
}

// SR1 returns the first source register from bits 8-6.
func (code Code) SR1() uint16 {
	return uint16(code>>6) & 0x7
}

// SR2 returns the second source register from bits 2-0.
func (code Code) SR2() uint16 {
	return uint16(code) & 0x7
}

// BaseR returns the base register from bits 8-6.
func (code Code) BaseR() uint16 {
	return uint16(code>>6) & 0x7
}

// ImmFlag reports whether bit 5 selects the immediate form of ADD/AND.
func (code Code) ImmFlag() bool {
	return (code>>5)&0x1 != 0
}

// LongFlag reports whether bit 11 selects the PC-relative form of JSR.
func (code Code) LongFlag() bool {
	return (code>>11)&0x1 != 0
}

// CondMask returns the BR condition mask from bits 11-9.
func (code Code) CondMask() Flag {
	return Flag(code>>9) & 0x7
}

// Imm5 returns the sign-extended 5-bit immediate.
func (code Code) Imm5() uint16 {
	return SignExtend(uint16(code)&0x1F, 5)
}

// Offset6 returns the sign-extended 6-bit base offset.
func (code Code) Offset6() uint16 {
	return SignExtend(uint16(code)&0x3F, 6)
}

// PCOffset9 returns the sign-extended 9-bit PC-relative offset.
func (code Code) PCOffset9() uint16 {
	return SignExtend(uint16(code)&0x1FF, 9)
}

// PCOffset11 returns the sign-extended 11-bit PC-relative offset.
func (code Code) PCOffset11() uint16 {
	return SignExtend(uint16(code)&0x7FF, 11)
}

// Trap returns the trap vector from the low byte.
func (code Code) Trap() TrapVector {
	return TrapVector(code & 0xFF)
}

// SignExtend widens an n-bit two's-complement field to 16 bits by
// replicating its sign bit.
func SignExtend(x uint16, bits uint) uint16 {
	if (x>>(bits-1))&0x1 != 0 {
		x |= 0xFFFF << bits
	}
	return x
}

// MakeCodeOperate builds the register form of ADD or AND.
func MakeCodeOperate(op Opcode, dr, sr1, sr2 uint16) Code {
	return Code(uint16(op)<<12 | (dr&0x7)<<9 | (sr1&0x7)<<6 | sr2&0x7)
}

// MakeCodeOperateImm builds the immediate form of ADD or AND.
func MakeCodeOperateImm(op Opcode, dr, sr1 uint16, imm int16) Code {
	return Code(uint16(op)<<12 | (dr&0x7)<<9 | (sr1&0x7)<<6 | 1<<5 | uint16(imm)&0x1F)
}

// MakeCodeNot builds a NOT instruction.
func MakeCodeNot(dr, sr uint16) Code {
	return Code(uint16(OP_NOT)<<12 | (dr&0x7)<<9 | (sr&0x7)<<6 | 0x3F)
}

// MakeCodeBr builds a BR instruction with the given condition mask.
func MakeCodeBr(mask Flag, offset int16) Code {
	return Code(uint16(OP_BR)<<12 | uint16(mask&0x7)<<9 | uint16(offset)&0x1FF)
}

// MakeCodeJmp builds a JMP through the base register (RET when base is R7).
func MakeCodeJmp(base uint16) Code {
	return Code(uint16(OP_JMP)<<12 | (base&0x7)<<6)
}

// MakeCodeJsr builds the PC-relative form of JSR.
func MakeCodeJsr(offset int16) Code {
	return Code(uint16(OP_JSR)<<12 | 1<<11 | uint16(offset)&0x7FF)
}

// MakeCodeJsrr builds the register form of JSR.
func MakeCodeJsrr(base uint16) Code {
	return Code(uint16(OP_JSR)<<12 | (base&0x7)<<6)
}

// MakeCodePCRel builds the PC-relative loads and stores (LD, LDI, LEA,
// ST, STI).
func MakeCodePCRel(op Opcode, reg uint16, offset int16) Code {
	return Code(uint16(op)<<12 | (reg&0x7)<<9 | uint16(offset)&0x1FF)
}

// MakeCodeBase builds the base+offset forms (LDR, STR).
func MakeCodeBase(op Opcode, reg, base uint16, offset int16) Code {
	return Code(uint16(op)<<12 | (reg&0x7)<<9 | (base&0x7)<<6 | uint16(offset)&0x3F)
}

// MakeCodeTrap builds a TRAP instruction for the given vector.
func MakeCodeTrap(vector TrapVector) Code {
	return Code(uint16(OP_TRAP)<<12 | uint16(vector)&0xFF)
}

// String returns the instruction in assembly form.
func (code Code) String() (out string) {
	op := code.Op()
	switch op {
	case OP_ADD, OP_AND:
		if code.ImmFlag() {
			out = fmt.Sprintf("%v r%d r%d #%d", op, code.DR(), code.SR1(), int16(code.Imm5()))
		} else {
			out = fmt.Sprintf("%v r%d r%d r%d", op, code.DR(), code.SR1(), code.SR2())
		}
	case OP_NOT:
		out = fmt.Sprintf("%v r%d r%d", op, code.DR(), code.SR1())
	case OP_BR:
		out = fmt.Sprintf("BR%v #%d", code.CondMask(), int16(code.PCOffset9()))
	case OP_JMP:
		if code.BaseR() == R7 {
			out = "RET"
		} else {
			out = fmt.Sprintf("%v r%d", op, code.BaseR())
		}
	case OP_JSR:
		if code.LongFlag() {
			out = fmt.Sprintf("JSR #%d", int16(code.PCOffset11()))
		} else {
			out = fmt.Sprintf("JSRR r%d", code.BaseR())
		}
	case OP_LD, OP_LDI, OP_LEA, OP_ST, OP_STI:
		out = fmt.Sprintf("%v r%d #%d", op, code.DR(), int16(code.PCOffset9()))
	case OP_LDR, OP_STR:
		out = fmt.Sprintf("%v r%d r%d #%d", op, code.DR(), code.BaseR(), int16(code.Offset6()))
	case OP_TRAP:
		out = fmt.Sprintf("%v %v", op, code.Trap())
	default:
		out = op.String()
	}
	return
}
