package logic

import "time"

// Pattern is a non-blocking repeating on/off sequencer. The pattern is
// active until the configured number of on-phases has completed; no
// trailing off-phase follows the last one.
type Pattern struct {
	count      int
	completed  int
	on         time.Duration
	off        time.Duration
	phase      Phase
	phaseStart time.Time
	active     bool
}

// Start resets and arms the pattern, entering the on-phase at now.
// It returns the output level to apply. A non-positive count leaves the
// pattern inactive with the output off.
func (p *Pattern) Start(count int, on, off time.Duration, now time.Time) bool {
	*p = Pattern{count: count, on: on, off: off}
	if count <= 0 {
		return false
	}
	p.phase = PhaseOn
	p.phaseStart = now
	p.active = true
	return true
}

// Update advances the phase timer and returns the output level.
func (p *Pattern) Update(now time.Time) bool {
	if !p.active {
		return false
	}

	elapsed := now.Sub(p.phaseStart)
	switch p.phase {
	case PhaseOn:
		if elapsed < p.on {
			return true
		}
		p.completed++
		if p.completed >= p.count {
			p.active = false
			return false
		}
		p.phase = PhaseOff
		p.phaseStart = now
		return false
	default:
		if elapsed < p.off {
			return false
		}
		p.phase = PhaseOn
		p.phaseStart = now
		return true
	}
}

// Stop ends the pattern early.
func (p *Pattern) Stop() {
	p.active = false
}

// IsActive reports whether the pattern is still running.
func (p *Pattern) IsActive() bool {
	return p.active
}

// Completed returns the number of finished on-phases.
func (p *Pattern) Completed() int {
	return p.completed
}

// Phase returns the current phase.
func (p *Pattern) Phase() Phase {
	return p.phase
}
