package device

import (
	"math"
	"testing"
	"time"
)

func TestDistanceFromEcho(t *testing.T) {
	tests := []struct {
		pulse time.Duration
		want  float64
	}{
		{0, NoEcho},
		{-time.Microsecond, NoEcho},
		{583 * time.Microsecond, 9.99845},
		{1000 * time.Microsecond, 17.15},
		{31 * time.Millisecond, NoEcho},
	}
	for _, tt := range tests {
		if got := DistanceFromEcho(tt.pulse); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DistanceFromEcho(%v): got %v, want %v", tt.pulse, got, tt.want)
		}
	}
}

func TestFakeRangerRepeatsLast(t *testing.T) {
	r := &FakeRanger{Readings: []float64{-1, 5}}

	got := []float64{r.MeasureDistanceCm(), r.MeasureDistanceCm(), r.MeasureDistanceCm()}
	want := []float64{-1, 5, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reading %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if r.Calls != 3 {
		t.Errorf("Calls: got %d, want 3", r.Calls)
	}

	empty := &FakeRanger{}
	if got := empty.MeasureDistanceCm(); got != NoEcho {
		t.Errorf("empty: got %v, want %v", got, NoEcho)
	}
}
