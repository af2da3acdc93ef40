package cpu

import (
	"encoding/binary"
	"errors"
	"io"
)

// LoadImage reads an LC-3 image stream into memory. The stream is a
// sequence of big-endian 16-bit words: the first is the load origin, the
// rest are placed contiguously from there. Loading stops at end of
// stream or at the top of the address space; a trailing odd byte is
// dropped.
func LoadImage(mem *Memory, r io.Reader) (origin uint16, err error) {
	var buf [2]byte

	_, err = io.ReadFull(r, buf[:])
	if err != nil {
		err = errors.Join(ErrImageShort, err)
		return
	}
	origin = binary.BigEndian.Uint16(buf[:])

	for addr := uint32(origin); addr < MEMORY_MAX; addr++ {
		_, err = io.ReadFull(r, buf[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
			return
		}
		if err != nil {
			return
		}
		mem.cells[addr] = binary.BigEndian.Uint16(buf[:])
	}

	return
}
