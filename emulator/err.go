package emulator

import (
	"github.com/i0nbeam/LC-3/translate"
)

var f = translate.From

// ErrRuntime is a machine fault annotated with the address of the
// faulting instruction.
type ErrRuntime struct {
	PC  uint16
	Err error
}

func (e *ErrRuntime) Error() string {
	return f("pc %#04x %v", e.PC, e.Err)
}

func (e *ErrRuntime) Unwrap() error {
	return e.Err
}
