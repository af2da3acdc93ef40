package cpu

import (
	"encoding/binary"
	"iter"
)

// Statement is one assembled source line with its generated words.
type Statement struct {
	LineNo    int      // Source line number.
	Addr      uint16   // Address of the first generated word.
	Words     []string // Source words, for diagnostics.
	Codes     []Code   // Generated instruction or data words.
	LinkLabel string   // Label backpatched into the last code, if any.
	LinkBits  int      // Width of the backpatched field (6, 9, 11, or 16).
}

// Program is an assembled LC-3 program: a load origin plus the
// contiguous words generated from each source line.
type Program struct {
	Origin     uint16
	Statements []Statement
}

// Codes iterates the program's words with their load addresses.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, st := range prog.Statements {
			for n, code := range st.Codes {
				if !yield(st.Addr+uint16(n), code) {
					return
				}
			}
		}
	}
}

// Binary returns the program's word image, origin excluded.
func (prog *Program) Binary() (words []uint16) {
	for _, code := range prog.Codes() {
		words = append(words, uint16(code))
	}
	return
}

// Image returns the big-endian byte stream accepted by LoadImage: the
// origin word followed by the program words.
func (prog *Program) Image() (data []byte) {
	data = binary.BigEndian.AppendUint16(data, prog.Origin)
	for _, code := range prog.Codes() {
		data = binary.BigEndian.AppendUint16(data, uint16(code))
	}
	return
}

// Debug locates the source statement covering an address.
type Debug struct {
	*Statement
	Index int
}

func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, st := range prog.Statements {
		if addr >= st.Addr && addr < st.Addr+uint16(len(st.Codes)) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr - st.Addr),
			}
			break
		}
	}

	return
}
