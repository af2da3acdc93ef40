// Package device supplies the character input capability consumed by the
// machine core: a non-blocking availability poll for the memory-mapped
// keyboard status register, and a blocking single-key read for the input
// trap routines.
package device

// Keyboard is the machine's input device.
type Keyboard interface {
	// Poll reports whether a key is available without blocking.
	Poll() bool
	// ReadKey blocks until a key is available and returns it.
	ReadKey() (key byte, err error)
}
