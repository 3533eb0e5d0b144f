// Package diag is the bench test mode: it exercises the keypad, ranger,
// gripper, buzzer and buttons without driving the rail.
package diag

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/device"
)

// Hardware is the subset of devices the bench uses.
type Hardware struct {
	Stop    *device.Button
	Grip    *device.Button
	Gripper *device.Gripper
	Buzzer  *device.Buzzer
	Keypad  device.Keypad
	Ranger  device.Ranger
}

// Config holds bench timing and gripper angles.
type Config struct {
	Tick          time.Duration
	RangeInterval time.Duration
	ServoMove     time.Duration // test sweep duration
	ServoHold     time.Duration
	PatternGap    time.Duration
	KeyBeep       time.Duration
	GripperOpen   float64
	GripperClosed float64
	GripperMove   time.Duration // grip button toggle duration
}

// DefaultConfig returns the bench defaults.
func DefaultConfig() Config {
	return Config{
		Tick:          10 * time.Millisecond,
		RangeInterval: 500 * time.Millisecond,
		ServoMove:     time.Second,
		ServoHold:     time.Second,
		PatternGap:    time.Second,
		KeyBeep:       50 * time.Millisecond,
		GripperOpen:   90,
		GripperClosed: 30,
		GripperMove:   500 * time.Millisecond,
	}
}

// Band classifies a distance reading for the operator.
func Band(cm float64) string {
	switch {
	case cm < 0:
		return "ERROR"
	case cm < 5:
		return "VERY CLOSE!"
	case cm < 10:
		return "CLOSE"
	case cm < 20:
		return "NEAR"
	}
	return "FAR"
}

// Bench runs the diagnostics menu. Operator output goes to out.
type Bench struct {
	hw  Hardware
	cfg Config
	clk clock.Clock
	out io.Writer
	log zerolog.Logger

	gripperClosed bool
}

// New creates a bench.
func New(hw Hardware, cfg Config, clk clock.Clock, out io.Writer, log zerolog.Logger) *Bench {
	return &Bench{hw: hw, cfg: cfg, clk: clk, out: out, log: log}
}

// Init adopts button levels, opens the gripper and plays the startup
// tones, then shows the menu.
func (b *Bench) Init() error {
	now := b.clk.Now()
	for _, btn := range []*device.Button{b.hw.Stop, b.hw.Grip} {
		if err := btn.Init(now); err != nil {
			return err
		}
	}
	if err := b.hw.Buzzer.Init(); err != nil {
		return err
	}
	if err := b.hw.Gripper.Init(b.cfg.GripperOpen); err != nil {
		return err
	}
	b.gripperClosed = false
	if err := b.hw.Buzzer.PlayStartup(); err != nil {
		return err
	}
	fmt.Fprintln(b.out, "System ready!")
	b.ShowMenu()
	return nil
}

// GripperClosed reports the last commanded gripper position.
func (b *Bench) GripperClosed() bool {
	return b.gripperClosed
}

// Run calls Tick on every tick until ctx is cancelled.
func (b *Bench) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if err := b.Tick(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

// Tick services buttons and the keypad once. A selected test blocks until
// it finishes or ctx is cancelled.
func (b *Bench) Tick(ctx context.Context) error {
	now := b.clk.Now()
	for _, btn := range []*device.Button{b.hw.Stop, b.hw.Grip} {
		if err := btn.Update(now); err != nil {
			b.log.Warn().Err(err).Msg("button read error")
		}
	}
	b.refresh(now)

	if b.hw.Grip.WasPressed() {
		target := b.cfg.GripperClosed
		if b.gripperClosed {
			fmt.Fprintln(b.out, ">>> Opening gripper...")
			target = b.cfg.GripperOpen
		} else {
			fmt.Fprintln(b.out, ">>> Closing gripper...")
		}
		b.hw.Gripper.MoveToAngle(target, b.cfg.GripperMove, now)
		b.gripperClosed = !b.gripperClosed
		b.confirm()
	}

	if b.hw.Stop.WasPressed() {
		b.confirm()
		b.ShowMenu()
	}

	key, ok := b.hw.Keypad.PollKey()
	if !ok {
		return nil
	}
	b.confirm()

	switch key {
	case '1':
		return b.KeypadTest(ctx)
	case '2':
		return b.RangerTest(ctx)
	case '3':
		return b.GripperTest(ctx)
	case '4':
		return b.BuzzerTest(ctx)
	case '0':
		b.ShowMenu()
	default:
		fmt.Fprintf(b.out, "Key pressed: %c (not assigned)\nPress '0' for menu\n", key)
	}
	return nil
}

// ShowMenu prints the test menu.
func (b *Bench) ShowMenu() {
	fmt.Fprint(b.out, `
TEST MENU (no rail)
  [1] Keypad test (echo keys, # exits)
  [2] Ranger test (continuous, any key exits)
  [3] Gripper test (open/close/open)
  [4] Buzzer test (all patterns)
  [0] Show this menu
  Grip button: toggle gripper
  Stop button: show menu

`)
}

// KeypadTest echoes every key until '#'.
func (b *Bench) KeypadTest(ctx context.Context) error {
	fmt.Fprintln(b.out, "=== KEYPAD TEST ===\nPress any key. '#' exits.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if key, ok := b.hw.Keypad.PollKey(); ok {
			if key == '#' {
				fmt.Fprintln(b.out, "Exiting keypad test.")
				b.confirm()
				b.ShowMenu()
				return nil
			}
			fmt.Fprintf(b.out, "Key pressed: [%c]\n", key)
			if err := b.hw.Buzzer.Beep(b.cfg.KeyBeep); err != nil {
				b.log.Warn().Err(err).Msg("buzzer error")
			}
		}
		b.clk.Sleep(b.cfg.Tick)
	}
}

// RangerTest prints a reading every RangeInterval until any key.
func (b *Bench) RangerTest(ctx context.Context) error {
	fmt.Fprintln(b.out, "=== RANGER TEST ===\nMeasuring continuously. Any key exits.")
	var last time.Time
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := b.clk.Now()
		if last.IsZero() || now.Sub(last) >= b.cfg.RangeInterval {
			cm := b.hw.Ranger.MeasureDistanceCm()
			if cm < 0 {
				fmt.Fprintln(b.out, "Distance: ERROR (out of range or timeout)")
			} else {
				fmt.Fprintf(b.out, "Distance: %.2f cm [%s]\n", cm, Band(cm))
			}
			last = now
		}
		if _, ok := b.hw.Keypad.PollKey(); ok {
			fmt.Fprintln(b.out, "Exiting ranger test.")
			b.confirm()
			b.ShowMenu()
			return nil
		}
		b.clk.Sleep(b.cfg.Tick)
	}
}

// GripperTest sweeps open, closed and open again.
func (b *Bench) GripperTest(ctx context.Context) error {
	fmt.Fprintln(b.out, "=== GRIPPER TEST ===")
	steps := []struct {
		label  string
		angle  float64
		closed bool
	}{
		{"Opening gripper...", b.cfg.GripperOpen, false},
		{"Closing gripper...", b.cfg.GripperClosed, true},
		{"Opening gripper...", b.cfg.GripperOpen, false},
	}
	for i, s := range steps {
		fmt.Fprintln(b.out, s.label)
		b.hw.Gripper.MoveToAngle(s.angle, b.cfg.ServoMove, b.clk.Now())
		if err := b.wait(ctx, b.hw.Gripper.Moving); err != nil {
			return err
		}
		b.gripperClosed = s.closed
		if err := b.hw.Buzzer.Beep(100 * time.Millisecond); err != nil {
			b.log.Warn().Err(err).Msg("buzzer error")
		}
		if i < len(steps)-1 {
			b.clk.Sleep(b.cfg.ServoHold)
		}
	}
	fmt.Fprintln(b.out, "Gripper test complete!")
	b.success()
	b.ShowMenu()
	return nil
}

// BuzzerTest plays every preset and a five-beep pattern.
func (b *Bench) BuzzerTest(ctx context.Context) error {
	fmt.Fprintln(b.out, "=== BUZZER TEST ===")
	presets := []struct {
		label string
		play  func() error
	}{
		{"1. Startup sequence...", b.hw.Buzzer.PlayStartup},
		{"2. Confirm beep...", b.hw.Buzzer.PlayConfirm},
		{"3. Success beep...", b.hw.Buzzer.PlaySuccess},
		{"4. Error beep...", b.hw.Buzzer.PlayError},
	}
	for _, p := range presets {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(b.out, p.label)
		if err := p.play(); err != nil {
			b.log.Warn().Err(err).Msg("buzzer error")
		}
		b.clk.Sleep(b.cfg.PatternGap)
	}

	fmt.Fprintln(b.out, "5. Custom pattern (5 short beeps)...")
	if err := b.hw.Buzzer.StartPattern(5, 100*time.Millisecond, 150*time.Millisecond, b.clk.Now()); err != nil {
		b.log.Warn().Err(err).Msg("buzzer error")
	}
	if err := b.wait(ctx, b.hw.Buzzer.Playing); err != nil {
		return err
	}

	fmt.Fprintln(b.out, "Buzzer test complete!")
	b.success()
	b.ShowMenu()
	return nil
}

// wait ticks the gripper and buzzer while busy reports true.
func (b *Bench) wait(ctx context.Context, busy func() bool) error {
	for busy() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.clk.Sleep(b.cfg.Tick)
		b.refresh(b.clk.Now())
	}
	return nil
}

func (b *Bench) refresh(now time.Time) {
	if err := b.hw.Gripper.Update(now); err != nil {
		b.log.Warn().Err(err).Msg("gripper write error")
	}
	if err := b.hw.Buzzer.Update(now); err != nil {
		b.log.Warn().Err(err).Msg("buzzer error")
	}
}

func (b *Bench) confirm() {
	if err := b.hw.Buzzer.PlayConfirm(); err != nil {
		b.log.Warn().Err(err).Msg("buzzer error")
	}
}

func (b *Bench) success() {
	if err := b.hw.Buzzer.PlaySuccess(); err != nil {
		b.log.Warn().Err(err).Msg("buzzer error")
	}
}
