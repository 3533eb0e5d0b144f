// Package device translates logical quantities (pressed, speed, angle,
// beeps, keys, distance) to and from the raw GPIO and PWM capabilities.
package device

import (
	"fmt"
	"time"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/logic"
)

// Button is a debounced digital input.
type Button struct {
	Name string

	pins      gpio.Pins
	pin       int
	activeLow bool
	window    time.Duration
	db        *logic.Debouncer
}

// NewButton creates a button on pin. With activeLow (pull-up wiring) a low
// level reads as pressed.
func NewButton(name string, pins gpio.Pins, pin int, activeLow bool, window time.Duration) *Button {
	return &Button{
		Name:      name,
		pins:      pins,
		pin:       pin,
		activeLow: activeLow,
		window:    window,
		db:        logic.NewDebouncer(window, false, time.Time{}),
	}
}

// Init adopts the current raw level as the debounced state without raising
// an edge.
func (b *Button) Init(now time.Time) error {
	pressed, err := b.read()
	if err != nil {
		return err
	}
	b.db = logic.NewDebouncer(b.window, pressed, now)
	return nil
}

func (b *Button) read() (bool, error) {
	raw, err := b.pins.Read(b.pin)
	if err != nil {
		return false, fmt.Errorf("read %s button: %w", b.Name, err)
	}
	return raw != b.activeLow, nil
}

// Update samples the pin once.
func (b *Button) Update(now time.Time) error {
	pressed, err := b.read()
	if err != nil {
		return err
	}
	b.db.Sample(pressed, now)
	return nil
}

// IsPressed returns the debounced state.
func (b *Button) IsPressed() bool {
	return b.db.IsPressed()
}

// WasPressed consumes a pending press edge.
func (b *Button) WasPressed() bool {
	return b.db.ConsumePress()
}

// WasReleased consumes a pending release edge.
func (b *Button) WasReleased() bool {
	return b.db.ConsumeRelease()
}

// WaitForPress spins on Update until the button reads pressed.
// It is a synchronous convenience and is not used by the control loop.
func (b *Button) WaitForPress(clk clock.Clock, poll time.Duration) error {
	for !b.IsPressed() {
		if err := b.Update(clk.Now()); err != nil {
			return err
		}
		clk.Sleep(poll)
	}
	return nil
}

// WaitForRelease spins on Update until the button reads released.
func (b *Button) WaitForRelease(clk clock.Clock, poll time.Duration) error {
	for b.IsPressed() {
		if err := b.Update(clk.Now()); err != nil {
			return err
		}
		clk.Sleep(poll)
	}
	return nil
}
