// Package gpio provides digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Pins reads and writes digital lines addressed by pin number.
// Values are raw electrical levels: true = high.
type Pins interface {
	// Read returns the level of an input line.
	Read(pin int) (bool, error)

	// Write drives an output line.
	Write(pin int, high bool) error

	// Close releases GPIO resources.
	Close() error
}

// Mode selects how a line is requested.
type Mode int

const (
	Input Mode = iota
	InputPullUp
	InputPullDown
	Output
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case InputPullUp:
		return "input-pull-up"
	case InputPullDown:
		return "input-pull-down"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// LineConfig describes one line to request.
type LineConfig struct {
	Pin     int
	Mode    Mode
	Initial bool // initial level for outputs
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
