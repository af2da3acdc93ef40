package device

import (
	"io"
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Console reads keys from the host terminal. While open, the terminal
// runs in raw mode (no line buffering, no echo); Restore reinstates the
// saved state. When stdin is not a terminal (a pipe or file), the
// terminal configuration is skipped and keys are read as-is.
type Console struct {
	saved unix.Termios
	raw   bool

	keys chan byte
}

var _ Keyboard = (*Console)(nil)

// NewConsole switches the controlling terminal into raw mode and starts
// the background key reader.
func NewConsole() (con *Console, err error) {
	con = &Console{keys: make(chan byte, 64)}

	fd := os.Stdin.Fd()
	if term.IsTerminal(int(fd)) {
		err = termios.Tcgetattr(fd, &con.saved)
		if err != nil {
			return
		}
		raw := con.saved
		raw.Lflag &^= unix.ICANON | unix.ECHO
		err = termios.Tcsetattr(fd, termios.TCSANOW, &raw)
		if err != nil {
			return
		}
		con.raw = true
	}

	go con.reader()

	return
}

// reader feeds stdin into the key channel one byte at a time, so Poll
// never blocks the fetch-execute cycle.
func (con *Console) reader() {
	var one [1]byte
	for {
		n, err := os.Stdin.Read(one[:])
		if n > 0 {
			con.keys <- one[0]
		}
		if err != nil {
			close(con.keys)
			return
		}
	}
}

// Poll reports whether a key is pending.
func (con *Console) Poll() bool {
	return len(con.keys) > 0
}

// ReadKey blocks for the next key; io.EOF once stdin is exhausted.
func (con *Console) ReadKey() (key byte, err error) {
	key, ok := <-con.keys
	if !ok {
		err = io.EOF
	}
	return
}

// Restore reinstates the saved terminal state.
func (con *Console) Restore() {
	if con.raw {
		termios.Tcsetattr(os.Stdin.Fd(), termios.TCSANOW, &con.saved)
		con.raw = false
	}
}
