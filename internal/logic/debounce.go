package logic

import "time"

// Debouncer filters a noisy boolean into a stable state plus read-once
// press and release edges.
type Debouncer struct {
	window     time.Duration
	raw        bool
	lastChange time.Time
	stable     bool
	pressed    bool
	released   bool
}

// NewDebouncer creates a Debouncer whose stable state starts at initial.
// No edge is raised for the initial state.
func NewDebouncer(window time.Duration, initial bool, now time.Time) *Debouncer {
	return &Debouncer{
		window:     window,
		raw:        initial,
		lastChange: now,
		stable:     initial,
	}
}

// Sample feeds one raw reading taken at now. Once the raw value has held for
// the debounce window and differs from the stable state, the stable state
// flips and exactly one edge is raised.
func (d *Debouncer) Sample(raw bool, now time.Time) {
	if raw != d.raw {
		d.raw = raw
		d.lastChange = now
	}

	if now.Sub(d.lastChange) < d.window || d.raw == d.stable {
		return
	}

	d.stable = d.raw
	if d.stable {
		d.pressed = true
	} else {
		d.released = true
	}
}

// IsPressed returns the debounced state without consuming anything.
func (d *Debouncer) IsPressed() bool {
	return d.stable
}

// ConsumePress reports and clears a pending press edge.
func (d *Debouncer) ConsumePress() bool {
	p := d.pressed
	d.pressed = false
	return p
}

// ConsumeRelease reports and clears a pending release edge.
func (d *Debouncer) ConsumeRelease() bool {
	r := d.released
	d.released = false
	return r
}

// Pending returns the edges currently waiting to be consumed.
func (d *Debouncer) Pending() []Edge {
	var edges []Edge
	if d.pressed {
		edges = append(edges, EdgePress)
	}
	if d.released {
		edges = append(edges, EdgeRelease)
	}
	return edges
}
