package device

import "time"

// Ranger measures distance to the nearest object.
type Ranger interface {
	// MeasureDistanceCm returns the distance in centimetres, or a negative
	// value when no echo was received.
	MeasureDistanceCm() float64
}

// NoEcho is returned for a failed measurement.
const NoEcho = -1.0

// EchoTimeout bounds the wait for an echo pulse, roughly 5 m of range.
const EchoTimeout = 30 * time.Millisecond

// cmPerMicrosecond is half the speed of sound: the pulse covers the
// distance twice.
const cmPerMicrosecond = 0.0343 / 2

// DistanceFromEcho converts an echo pulse width to centimetres.
func DistanceFromEcho(pulse time.Duration) float64 {
	if pulse <= 0 || pulse > EchoTimeout {
		return NoEcho
	}
	return float64(pulse.Microseconds()) * cmPerMicrosecond
}

// FakeRanger returns scripted readings. The last reading repeats.
type FakeRanger struct {
	Readings []float64
	Calls    int
}

// MeasureDistanceCm returns the next scripted reading, or NoEcho if none.
func (f *FakeRanger) MeasureDistanceCm() float64 {
	f.Calls++
	if len(f.Readings) == 0 {
		return NoEcho
	}
	v := f.Readings[0]
	if len(f.Readings) > 1 {
		f.Readings = f.Readings[1:]
	}
	return v
}
