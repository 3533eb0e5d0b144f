package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/config"
	"github.com/sweeney/pickplace/internal/control"
	"github.com/sweeney/pickplace/internal/device"
	"github.com/sweeney/pickplace/internal/diag"
	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/pwm"
)

// machine owns the opened hardware resources.
type machine struct {
	pins   gpio.Pins
	pwm    pwm.Driver
	ranger *device.HCSR04
	hw     control.Hardware
}

// openMachine requests the GPIO lines, PWM channels and ranger described by
// cfg. Keys come from the matrix keypad or, for bench use, from stdin.
func openMachine(cfg config.Config, clk clock.Clock, stdin io.Reader, log zerolog.Logger) (*machine, error) {
	pins, err := gpio.NewRealPins(cfg.GPIO.Chip, cfg.Lines())
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	drv, err := pwm.NewSysfs(cfg.PWM.Root, cfg.PWM.Chip, cfg.PWMChannels())
	if err != nil {
		pins.Close()
		return nil, fmt.Errorf("init pwm: %w", err)
	}
	ranger, err := device.NewHCSR04(cfg.GPIO.Chip, cfg.GPIO.Trigger, cfg.GPIO.Echo)
	if err != nil {
		drv.Close()
		pins.Close()
		return nil, fmt.Errorf("init ranger: %w", err)
	}

	keypad, err := newKeypad(cfg, pins, clk, stdin, log)
	if err != nil {
		ranger.Close()
		drv.Close()
		pins.Close()
		return nil, err
	}

	return &machine{
		pins:   pins,
		pwm:    drv,
		ranger: ranger,
		hw:     buildHardware(cfg, pins, drv, keypad, ranger, clk),
	}, nil
}

func newKeypad(cfg config.Config, pins gpio.Pins, clk clock.Clock, stdin io.Reader, log zerolog.Logger) (device.Keypad, error) {
	if cfg.Keypad.Source == "console" {
		return device.NewConsole(stdin), nil
	}
	rows, cols := cfg.KeypadPins()
	m := device.NewMatrix(pins, rows, cols, clk, cfg.Timing.KeypadRepeat, log.With().Str("component", "keypad").Logger())
	if err := m.Init(); err != nil {
		return nil, fmt.Errorf("init keypad: %w", err)
	}
	return m, nil
}

// buildHardware wires devices onto the capabilities. Buttons are wired
// active-low against the internal pull-ups.
func buildHardware(cfg config.Config, pins gpio.Pins, drv pwm.Driver, keypad device.Keypad, ranger device.Ranger, clk clock.Clock) control.Hardware {
	g := cfg.GPIO
	window := cfg.Timing.Debounce
	return control.Hardware{
		Stop:    device.NewButton("stop", pins, g.Stop, true, window),
		Home:    device.NewButton("home", pins, g.Home, true, window),
		Forward: device.NewButton("forward", pins, g.Forward, true, window),
		Reverse: device.NewButton("reverse", pins, g.Reverse, true, window),
		Grip:    device.NewButton("grip", pins, g.Grip, true, window),
		Limit:   device.NewButton("limit", pins, g.Limit, true, window),
		Rail:    device.NewRail(pins, drv, cfg.Rail()),
		Gripper: device.NewGripper(drv, cfg.Servo()),
		Buzzer:  device.NewBuzzer(pins, g.Buzzer, clk),
		Keypad:  keypad,
		Ranger:  ranger,
	}
}

// benchHardware selects the devices the diagnostics bench uses.
func benchHardware(hw control.Hardware) diag.Hardware {
	return diag.Hardware{
		Stop:    hw.Stop,
		Grip:    hw.Grip,
		Gripper: hw.Gripper,
		Buzzer:  hw.Buzzer,
		Keypad:  hw.Keypad,
		Ranger:  hw.Ranger,
	}
}

// Close releases every resource and reports all failures.
func (m *machine) Close() error {
	return errors.Join(m.ranger.Close(), m.pwm.Close(), m.pins.Close())
}
