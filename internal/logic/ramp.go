package logic

import "time"

// Ramp is a timed actuator value: it moves linearly from the value it held
// when armed toward a target over a duration. Commanding a new target while
// active abandons the previous interpolation.
type Ramp struct {
	current  float64
	from     float64
	target   float64
	start    time.Time
	duration time.Duration
	active   bool
}

// NewRamp creates an inactive Ramp resting at value.
func NewRamp(value float64) *Ramp {
	return &Ramp{current: value, from: value, target: value}
}

// Set jumps to value immediately and cancels any interpolation.
func (r *Ramp) Set(value float64) {
	r.current = value
	r.from = value
	r.target = value
	r.active = false
}

// Start arms an interpolation from the current value to target beginning at
// start. start may lie in the future, in which case the value holds until
// then.
func (r *Ramp) Start(target float64, start time.Time, d time.Duration) {
	r.from = r.current
	r.target = target
	r.start = start
	r.duration = d
	r.active = true
}

// Update advances the ramp to now and returns the new value and whether
// this call completed it. On completion the value snaps exactly to target.
func (r *Ramp) Update(now time.Time) (float64, bool) {
	if !r.active {
		return r.current, false
	}

	p := Progress(r.start, now, r.duration)
	if p >= 1 {
		r.current = r.target
		r.active = false
		return r.current, true
	}

	r.current = r.from + (r.target-r.from)*p
	return r.current, false
}

// Cancel stops the interpolation where it is.
func (r *Ramp) Cancel() {
	r.active = false
}

// Value returns the last computed value.
func (r *Ramp) Value() float64 {
	return r.current
}

// Target returns the commanded target.
func (r *Ramp) Target() float64 {
	return r.target
}

// Active reports whether an interpolation is in flight.
func (r *Ramp) Active() bool {
	return r.active
}

// Elapsed returns the progress of the current interpolation at now.
func (r *Ramp) Elapsed(now time.Time) float64 {
	if !r.active {
		return 1
	}
	return Progress(r.start, now, r.duration)
}
