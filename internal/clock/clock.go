// Package clock abstracts wall time so the control loop can be driven
// deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and a way to wait.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System is the real clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manual clock. Sleep advances it instead of blocking, so code
// that spin-waits on a Fake completes immediately in simulated time.
type Fake struct {
	mu  sync.Mutex
	now time.Time

	// Slept accumulates every duration passed to Sleep.
	Slept time.Duration
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the clock by d.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.Slept += d
	f.mu.Unlock()
}

// Advance moves the clock forward by d without counting it as sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
