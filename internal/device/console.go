package device

import (
	"bufio"
	"io"
)

// Console is a keypad fed from a byte stream, typically the operator's
// terminal. Whitespace is ignored.
type Console struct {
	keys chan byte
}

// NewConsole starts reading r in the background.
func NewConsole(r io.Reader) *Console {
	c := &Console{keys: make(chan byte, 16)}
	go c.read(bufio.NewReader(r))
	return c
}

func (c *Console) read(r *bufio.Reader) {
	defer close(c.keys)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		c.keys <- b
	}
}

// PollKey returns the next typed key without blocking.
func (c *Console) PollKey() (byte, bool) {
	select {
	case b, ok := <-c.keys:
		return b, ok
	default:
		return 0, false
	}
}
