//go:build linux

package device

import (
	"testing"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

func TestAwaitPulse(t *testing.T) {
	events := make(chan gpiocdev.LineEvent, 4)
	events <- gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, Timestamp: time.Second}
	events <- gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: 2 * time.Second}
	events <- gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, Timestamp: 2*time.Second + 1200*time.Microsecond}

	if got := awaitPulse(events, 10*time.Millisecond); got != 1200*time.Microsecond {
		t.Errorf("pulse: got %v, want 1.2ms", got)
	}
}

func TestAwaitPulseTimeout(t *testing.T) {
	events := make(chan gpiocdev.LineEvent, 1)
	events <- gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: time.Second}

	if got := awaitPulse(events, 5*time.Millisecond); got != 0 {
		t.Errorf("pulse: got %v, want 0", got)
	}
}
