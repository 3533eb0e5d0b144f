package logic

import (
	"testing"
	"time"
)

func TestPatternPhaseCounts(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		var p Pattern
		out := p.Start(n, 100*time.Millisecond, 50*time.Millisecond, t0)
		if !out {
			t.Fatalf("n=%d: Start should turn the output on", n)
		}

		onPhases, offPhases := 1, 0
		prevPhase := p.Phase()
		prevOut := out
		endedAt := time.Duration(-1)

		for ms := 1; ms <= 2000; ms++ {
			now := t0.Add(time.Duration(ms) * time.Millisecond)
			out = p.Update(now)
			if out && !prevOut {
				onPhases++
			}
			if p.IsActive() && p.Phase() == PhaseOff && prevPhase == PhaseOn {
				offPhases++
			}
			if !p.IsActive() && endedAt < 0 {
				endedAt = time.Duration(ms) * time.Millisecond
			}
			prevOut = out
			prevPhase = p.Phase()
		}

		if onPhases != n {
			t.Errorf("n=%d: on-phases got %d, want %d", n, onPhases, n)
		}
		if offPhases != n-1 {
			t.Errorf("n=%d: off-phases got %d, want %d", n, offPhases, n-1)
		}
		want := time.Duration(n)*100*time.Millisecond + time.Duration(n-1)*50*time.Millisecond
		if endedAt != want {
			t.Errorf("n=%d: ended at %v, want %v", n, endedAt, want)
		}
		if p.Completed() != n {
			t.Errorf("n=%d: Completed got %d, want %d", n, p.Completed(), n)
		}
	}
}

func TestPatternActiveUntilLastOnPhaseEnds(t *testing.T) {
	var p Pattern
	p.Start(2, 100*time.Millisecond, 50*time.Millisecond, t0)

	p.Update(t0.Add(100 * time.Millisecond)) // off
	p.Update(t0.Add(150 * time.Millisecond)) // on
	if out := p.Update(t0.Add(249 * time.Millisecond)); !out || !p.IsActive() {
		t.Errorf("at 249ms: got out=%v active=%v, want true/true", out, p.IsActive())
	}
	if out := p.Update(t0.Add(250 * time.Millisecond)); out || p.IsActive() {
		t.Errorf("at 250ms: got out=%v active=%v, want false/false", out, p.IsActive())
	}
}

func TestPatternZeroCount(t *testing.T) {
	var p Pattern
	if p.Start(0, 100*time.Millisecond, 50*time.Millisecond, t0) {
		t.Error("zero count should not turn the output on")
	}
	if p.IsActive() {
		t.Error("zero count should not activate the pattern")
	}
}

func TestPatternRestartResets(t *testing.T) {
	var p Pattern
	p.Start(3, 100*time.Millisecond, 50*time.Millisecond, t0)
	p.Update(t0.Add(100 * time.Millisecond))

	p.Start(1, 10*time.Millisecond, 10*time.Millisecond, t0.Add(120*time.Millisecond))
	if p.Completed() != 0 {
		t.Errorf("Completed after restart: got %d, want 0", p.Completed())
	}
	if p.Update(t0.Add(130*time.Millisecond)) || p.IsActive() {
		t.Error("restarted single beep should end after 10ms")
	}
}
