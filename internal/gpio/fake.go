package gpio

import "fmt"

// FakePins is a test double holding line levels in memory.
type FakePins struct {
	// Levels holds the current level of each pin. Unset pins read Default.
	Levels map[int]bool

	// Default is the level of pins not present in Levels. Buttons and keypad
	// columns idle high with pull-ups, so NewFakePins sets it true.
	Default bool

	// Scripts holds per-pin scripted levels. Each Read consumes the next
	// value; once exhausted the last value repeats.
	Scripts map[int][]bool

	// Writes records every Write call in order.
	Writes []Write

	// ReadErrors, if set for a pin, is returned by Read for that pin.
	ReadErrors map[int]error

	// WriteError, if set, is returned by every Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool

	scriptIndex map[int]int
}

// Write is one recorded output change.
type Write struct {
	Pin  int
	High bool
}

// NewFakePins creates FakePins whose unset pins read high.
func NewFakePins() *FakePins {
	return &FakePins{
		Levels:      make(map[int]bool),
		Default:     true,
		Scripts:     make(map[int][]bool),
		ReadErrors:  make(map[int]error),
		scriptIndex: make(map[int]int),
	}
}

// Set forces the level of pin.
func (f *FakePins) Set(pin int, high bool) {
	f.Levels[pin] = high
}

// Script queues levels to be returned by successive reads of pin.
func (f *FakePins) Script(pin int, levels ...bool) {
	f.Scripts[pin] = levels
	f.scriptIndex[pin] = 0
}

// Level returns the current level of pin, including driven outputs.
func (f *FakePins) Level(pin int) bool {
	if v, ok := f.Levels[pin]; ok {
		return v
	}
	return f.Default
}

// Read returns the scripted or stored level of pin.
func (f *FakePins) Read(pin int) (bool, error) {
	if err := f.ReadErrors[pin]; err != nil {
		return false, err
	}

	if script := f.Scripts[pin]; len(script) > 0 {
		i := f.scriptIndex[pin]
		v := script[i]
		if i < len(script)-1 {
			f.scriptIndex[pin] = i + 1
		}
		return v, nil
	}

	return f.Level(pin), nil
}

// Write records the change and stores the level.
func (f *FakePins) Write(pin int, high bool) error {
	if f.WriteError != nil {
		return fmt.Errorf("write pin %d: %w", pin, f.WriteError)
	}
	f.Levels[pin] = high
	f.Writes = append(f.Writes, Write{Pin: pin, High: high})
	return nil
}

// WritesTo returns the recorded levels written to pin.
func (f *FakePins) WritesTo(pin int) []bool {
	var out []bool
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w.High)
		}
	}
	return out
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and scripts.
func (f *FakePins) Reset() {
	f.Writes = nil
	f.Closed = false
	f.Scripts = make(map[int][]bool)
	f.scriptIndex = make(map[int]int)
}
