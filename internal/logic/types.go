// Package logic contains the pure cooperative primitives of the controller:
// debouncing, timed interpolation and on/off patterns.
// This package has NO external dependencies (no GPIO, PWM, MQTT, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// DefaultDebounce is the stable window a raw input must hold before the
// debounced state follows it.
const DefaultDebounce = 50 * time.Millisecond

// Edge is a one-shot debounced transition.
type Edge string

const (
	EdgePress   Edge = "PRESS"
	EdgeRelease Edge = "RELEASE"
)

// Phase is the current half of a Pattern cycle.
type Phase string

const (
	PhaseOn  Phase = "ON"
	PhaseOff Phase = "OFF"
)

// Progress returns how far along a timed action started at start with the
// given duration is at now, clamped to [0,1]. A non-positive duration is
// complete immediately.
func Progress(start, now time.Time, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	p := float64(now.Sub(start)) / float64(d)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
