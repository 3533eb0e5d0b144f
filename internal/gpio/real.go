//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives lines on a Linux GPIO character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	lines   map[int]*gpiocdev.Line
	outputs map[int]bool
}

// NewRealPins opens chipName and requests every configured line.
func NewRealPins(chipName string, cfgs []LineConfig) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("pickplace"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &RealPins{
		chip:    chip,
		lines:   make(map[int]*gpiocdev.Line, len(cfgs)),
		outputs: make(map[int]bool),
	}

	for _, cfg := range cfgs {
		if _, dup := p.lines[cfg.Pin]; dup {
			p.Close()
			return nil, fmt.Errorf("pin %d requested twice", cfg.Pin)
		}
		line, err := chip.RequestLine(cfg.Pin, lineOptions(cfg)...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request pin %d as %s: %w", cfg.Pin, cfg.Mode, err)
		}
		p.lines[cfg.Pin] = line
		if cfg.Mode == Output {
			p.outputs[cfg.Pin] = true
		}
	}

	return p, nil
}

func lineOptions(cfg LineConfig) []gpiocdev.LineReqOption {
	switch cfg.Mode {
	case Output:
		return []gpiocdev.LineReqOption{gpiocdev.AsOutput(level(cfg.Initial))}
	case InputPullUp:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	case InputPullDown:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	default:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput}
	}
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}

// Read returns the raw level of pin.
func (p *RealPins) Read(pin int) (bool, error) {
	line, ok := p.lines[pin]
	if !ok {
		return false, fmt.Errorf("read pin %d: not requested", pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Write drives pin high or low.
func (p *RealPins) Write(pin int, high bool) error {
	line, ok := p.lines[pin]
	if !ok || !p.outputs[pin] {
		return fmt.Errorf("write pin %d: not an output", pin)
	}
	if err := line.SetValue(level(high)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Close drives outputs low and releases every line.
// Inputs are reconfigured with pull-down before release so the board comes
// back up in the same state the Pi boots with.
func (p *RealPins) Close() error {
	var errs []error

	for pin, line := range p.lines {
		if p.outputs[pin] {
			if err := line.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("drive pin %d low: %w", pin, err))
			}
		} else if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	p.lines = nil

	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
