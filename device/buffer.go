package device

import (
	"io"
)

// Buffer is an in-memory keyboard fed through Push. It backs tests and
// embeddings that script their own input.
type Buffer struct {
	keys []byte
}

var _ Keyboard = (*Buffer)(nil)

// Push appends keys to the pending input.
func (kb *Buffer) Push(keys ...byte) {
	kb.keys = append(kb.keys, keys...)
}

// Poll reports whether any key is pending.
func (kb *Buffer) Poll() bool {
	return len(kb.keys) > 0
}

// ReadKey pops the next pending key, or io.EOF when the buffer is dry.
func (kb *Buffer) ReadKey() (key byte, err error) {
	if len(kb.keys) == 0 {
		err = io.EOF
		return
	}

	key = kb.keys[0]
	kb.keys = kb.keys[1:]
	return
}
