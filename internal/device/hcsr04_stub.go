//go:build !linux

package device

import "errors"

// HCSR04 is unavailable off Linux.
type HCSR04 struct{}

// NewHCSR04 returns an error on non-Linux platforms.
func NewHCSR04(chipName string, trigger, echo int) (*HCSR04, error) {
	return nil, errors.New("ultrasonic ranger is only supported on Linux")
}

// MeasureDistanceCm always fails.
func (h *HCSR04) MeasureDistanceCm() float64 { return NoEcho }

// Close is a no-op.
func (h *HCSR04) Close() error { return nil }
