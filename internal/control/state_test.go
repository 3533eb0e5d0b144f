package control

import (
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateInit, "INIT"},
		{StateWaitInput, "WAIT_INPUT"},
		{StateMoveToDropoff, "MOVE_TO_DROPOFF"},
		{StateError, "ERROR"},
		{State(99), "STATE(99)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d): got %q, want %q", int(tt.s), got, tt.want)
		}
	}
	if n := len(States()); n != 11 {
		t.Errorf("States: got %d, want 11", n)
	}
}

func TestMoveDuration(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		distance float64
		want     time.Duration
	}{
		{150, 3 * time.Second},
		{-25, 500 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{0.01, 0},
	}
	for _, tt := range tests {
		if got := cfg.MoveDuration(tt.distance); got != tt.want {
			t.Errorf("MoveDuration(%v): got %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestSinks(t *testing.T) {
	var a, b Recorder
	var n int
	s := Sinks{&a, &b, SinkFunc(func(Event) { n++ })}

	s.Handle(Event{Type: EventHomed})
	s.Handle(Event{Type: EventFault})

	if len(a.Events) != 2 || len(b.Events) != 2 || n != 2 {
		t.Errorf("fan-out: got %d, %d, %d, want 2 each", len(a.Events), len(b.Events), n)
	}
	if got := a.Types(); got[0] != EventHomed || got[1] != EventFault {
		t.Errorf("Types: got %v", got)
	}
	if _, ok := a.Last(EventRetry); ok {
		t.Error("Last found an event that was never sent")
	}
}
