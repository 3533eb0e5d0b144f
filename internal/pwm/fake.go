package pwm

// FakeDriver records duty cycle and enable changes for test assertions.
type FakeDriver struct {
	// Levels holds the last level set per channel.
	Levels map[int]uint32

	// Enabled holds the last enable state per channel.
	Enabled map[int]bool

	// History contains every SetDutyCycle call in order.
	History []Set

	// Err, if set, is returned by SetDutyCycle and Enable.
	Err error

	// Closed tracks if Close was called.
	Closed bool
}

// Set is one recorded SetDutyCycle call.
type Set struct {
	Channel int
	Level   uint32
}

// NewFakeDriver creates an empty FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Levels:  make(map[int]uint32),
		Enabled: make(map[int]bool),
	}
}

// SetDutyCycle records the level.
func (f *FakeDriver) SetDutyCycle(channel int, level uint32) error {
	if f.Err != nil {
		return f.Err
	}
	f.Levels[channel] = level
	f.History = append(f.History, Set{Channel: channel, Level: level})
	return nil
}

// Enable records the enable state.
func (f *FakeDriver) Enable(channel int, on bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.Enabled[channel] = on
	return nil
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}

// Writes returns how many SetDutyCycle calls targeted channel.
func (f *FakeDriver) Writes(channel int) int {
	n := 0
	for _, s := range f.History {
		if s.Channel == channel {
			n++
		}
	}
	return n
}
