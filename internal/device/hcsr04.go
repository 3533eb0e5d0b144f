//go:build linux

package device

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// HCSR04 is an ultrasonic ranger read through GPIO edge events. The echo
// width is taken from kernel event timestamps rather than user-space
// polling.
type HCSR04 struct {
	trig   *gpiocdev.Line
	echo   *gpiocdev.Line
	events chan gpiocdev.LineEvent
}

// NewHCSR04 requests the trigger and echo lines on chipName.
func NewHCSR04(chipName string, trigger, echo int) (*HCSR04, error) {
	h := &HCSR04{events: make(chan gpiocdev.LineEvent, 8)}

	trig, err := gpiocdev.RequestLine(chipName, trigger,
		gpiocdev.WithConsumer("pickplace"), gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request trigger pin %d: %w", trigger, err)
	}
	h.trig = trig

	e, err := gpiocdev.RequestLine(chipName, echo,
		gpiocdev.WithConsumer("pickplace"),
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(h.handle))
	if err != nil {
		trig.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", echo, err)
	}
	h.echo = e

	time.Sleep(50 * time.Millisecond)
	return h, nil
}

func (h *HCSR04) handle(evt gpiocdev.LineEvent) {
	select {
	case h.events <- evt:
	default:
	}
}

// MeasureDistanceCm fires one 10us trigger pulse and times the echo.
func (h *HCSR04) MeasureDistanceCm() float64 {
	for len(h.events) > 0 {
		<-h.events
	}
	if err := h.trig.SetValue(1); err != nil {
		return NoEcho
	}
	time.Sleep(10 * time.Microsecond)
	if err := h.trig.SetValue(0); err != nil {
		return NoEcho
	}
	return DistanceFromEcho(awaitPulse(h.events, 2*EchoTimeout))
}

// awaitPulse returns the width of the next high pulse on events, or zero
// if none completes within timeout.
func awaitPulse(events <-chan gpiocdev.LineEvent, timeout time.Duration) time.Duration {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var rise time.Duration
	rising := false
	for {
		select {
		case evt := <-events:
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				rise = evt.Timestamp
				rising = true
			case gpiocdev.LineEventFallingEdge:
				if rising {
					return evt.Timestamp - rise
				}
			}
		case <-deadline.C:
			return 0
		}
	}
}

// Close releases both lines.
func (h *HCSR04) Close() error {
	var errs []error
	if err := h.trig.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.echo.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ranger: %v", errs)
	}
	return nil
}
