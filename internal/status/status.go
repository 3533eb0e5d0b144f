// Package status provides a thread-safe view of the controller for the
// HTTP server and lifecycle telemetry.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pickplace/internal/control"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	ThresholdCM float64
	Targets     int
	Broker      string
	HTTPAddr    string
	File        string
}

// Counts are event totals since start.
type Counts struct {
	Cycles  int
	Faults  int
	Retries int
	EStops  int
	Homings int
	Manual  int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         control.State
	Started       bool // at least one event seen
	Target        int
	CycleID       string
	PositionMM    float64
	Drifted       bool
	GripperClosed bool
	LastEvent     control.EventType
	LastEventTime time.Time
	LastFault     string
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the machine is waiting for a selection.
func (s Snapshot) Ready() bool {
	return s.Started && (s.State == control.StateIdle || s.State == control.StateWaitInput)
}

// Tracker holds mutable daemon state behind an RWMutex.
// It is a control.Sink.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Handle folds a controller event into the snapshot.
func (t *Tracker) Handle(e control.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.Started = true
	s.State = e.State
	s.Target = e.Target
	s.CycleID = e.CycleID
	s.PositionMM = e.PositionMM
	s.Drifted = e.Drifted
	s.GripperClosed = e.GripperClosed
	s.LastEvent = e.Type
	s.LastEventTime = e.Time

	switch e.Type {
	case control.EventCycleComplete:
		s.Counts.Cycles++
	case control.EventFault:
		s.Counts.Faults++
		s.LastFault = e.Reason
	case control.EventRetry:
		s.Counts.Retries++
	case control.EventEStop:
		s.Counts.EStops++
	case control.EventHomed:
		s.Counts.Homings++
	case control.EventManual:
		s.Counts.Manual++
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
