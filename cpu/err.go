package cpu

import (
	"errors"

	"github.com/i0nbeam/LC-3/translate"
)

var f = translate.From

var (
	// Machine errors
	ErrNoInput    = errors.New(f("no input device"))
	ErrImageShort = errors.New(f("image truncated"))

	// Assembler errors
	ErrOriginMissing   = errors.New(f(".orig missing"))
	ErrOriginDuplicate = errors.New(f(".orig duplicated"))
	ErrEquateSyntax    = errors.New(f(".equ syntax"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrOperandMissing  = errors.New(f("operand missing"))
	ErrOperandExtra    = errors.New(f("excessive operands"))
	ErrOpcodeInvalid   = errors.New(f("opcode invalid"))
	ErrRegisterInvalid = errors.New(f("register invalid"))
	ErrImmediateRange  = errors.New(f("immediate out of range"))
	ErrOffsetRange     = errors.New(f("offset out of range"))
	ErrVectorRange     = errors.New(f("trap vector out of range"))
	ErrBlockSize       = errors.New(f(".blkw size invalid"))
	ErrStringSyntax    = errors.New(f(".stringz syntax"))
)

// ErrReserved is the fatal fault raised when a reserved or unimplemented
// opcode (RES, RTI) is executed.
type ErrReserved Code

func (er ErrReserved) Error() string {
	return f("reserved opcode 0x%04x %v", uint16(er), Code(er).String())
}

func (er ErrReserved) Is(err error) (ok bool) {
	_, ok = err.(ErrReserved)
	return
}

// ErrTrapVector is the fatal fault raised for a trap vector outside the
// service table.
type ErrTrapVector TrapVector

func (et ErrTrapVector) Error() string {
	return f("unknown trap vector 0x%02x", uint16(et))
}

func (et ErrTrapVector) Is(err error) (ok bool) {
	_, ok = err.(ErrTrapVector)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}
