package device

import (
	"fmt"
	"time"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/logic"
)

// Tone is one beep followed by a pause.
type Tone struct {
	On  time.Duration
	Off time.Duration
}

// Fixed feedback sequences, played synchronously.
var (
	StartupTones = []Tone{{100 * time.Millisecond, 100 * time.Millisecond}, {100 * time.Millisecond, 100 * time.Millisecond}, {200 * time.Millisecond, 100 * time.Millisecond}}
	ConfirmTones = []Tone{{100 * time.Millisecond, 0}}
	SuccessTones = []Tone{{100 * time.Millisecond, 50 * time.Millisecond}, {100 * time.Millisecond, 0}}
	ErrorTones   = []Tone{{150 * time.Millisecond, 100 * time.Millisecond}, {150 * time.Millisecond, 100 * time.Millisecond}, {150 * time.Millisecond, 100 * time.Millisecond}}
)

// Buzzer drives an active buzzer on one output line.
type Buzzer struct {
	pins    gpio.Pins
	pin     int
	clk     clock.Clock
	pattern logic.Pattern
	on      bool
}

// NewBuzzer creates a silent buzzer on pin.
func NewBuzzer(pins gpio.Pins, pin int, clk clock.Clock) *Buzzer {
	return &Buzzer{pins: pins, pin: pin, clk: clk}
}

// Init drives the output low.
func (b *Buzzer) Init() error {
	return b.set(false)
}

func (b *Buzzer) set(on bool) error {
	if err := b.pins.Write(b.pin, on); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}
	b.on = on
	return nil
}

// On starts sounding.
func (b *Buzzer) On() error { return b.set(true) }

// Off stops sounding.
func (b *Buzzer) Off() error { return b.set(false) }

// IsOn reports the output state.
func (b *Buzzer) IsOn() bool { return b.on }

// Beep sounds for d, blocking.
func (b *Buzzer) Beep(d time.Duration) error {
	if err := b.On(); err != nil {
		return err
	}
	b.clk.Sleep(d)
	return b.Off()
}

// Play sounds tones in order, blocking. A running pattern is cancelled.
func (b *Buzzer) Play(tones []Tone) error {
	b.pattern.Stop()
	for _, t := range tones {
		if err := b.Beep(t.On); err != nil {
			return err
		}
		if t.Off > 0 {
			b.clk.Sleep(t.Off)
		}
	}
	return nil
}

// PlayStartup plays three ascending beeps.
func (b *Buzzer) PlayStartup() error { return b.Play(StartupTones) }

// PlayConfirm plays a single short beep.
func (b *Buzzer) PlayConfirm() error { return b.Play(ConfirmTones) }

// PlaySuccess plays two short beeps.
func (b *Buzzer) PlaySuccess() error { return b.Play(SuccessTones) }

// PlayError plays three rapid beeps.
func (b *Buzzer) PlayError() error { return b.Play(ErrorTones) }

// StartPattern arms the non-blocking pattern. Update must be called every
// tick to advance it.
func (b *Buzzer) StartPattern(count int, on, off time.Duration, now time.Time) error {
	return b.set(b.pattern.Start(count, on, off, now))
}

// Update advances a running pattern.
func (b *Buzzer) Update(now time.Time) error {
	if !b.pattern.IsActive() {
		return nil
	}
	level := b.pattern.Update(now)
	if level == b.on {
		return nil
	}
	return b.set(level)
}

// Playing reports whether a pattern is running.
func (b *Buzzer) Playing() bool {
	return b.pattern.IsActive()
}
