package control

import "time"

// EventType classifies workflow events.
type EventType string

const (
	EventState         EventType = "STATE"
	EventSelected      EventType = "SELECTED"
	EventHomed         EventType = "HOMED"
	EventCycleComplete EventType = "CYCLE_COMPLETE"
	EventFault         EventType = "FAULT"
	EventRetry         EventType = "RETRY"
	EventEStop         EventType = "ESTOP"
	EventManual        EventType = "MANUAL"
)

// Event reports something the controller did.
type Event struct {
	Time          time.Time
	Type          EventType
	CycleID       string
	State         State
	Target        int
	PositionMM    float64
	DistanceCM    float64
	GripperClosed bool
	Drifted       bool
	Reason        string
}

// Sink receives events synchronously from the control loop. Handle must
// not block.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Handle calls f(e).
func (f SinkFunc) Handle(e Event) { f(e) }

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

// Handle forwards e to every sink.
func (s Sinks) Handle(e Event) {
	for _, sink := range s {
		sink.Handle(e)
	}
}

// Recorder is a Sink that keeps every event, for tests.
type Recorder struct {
	Events []Event
}

// Handle appends e.
func (r *Recorder) Handle(e Event) {
	r.Events = append(r.Events, e)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	out := make([]EventType, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}

// Last returns the most recent event of type t.
func (r *Recorder) Last(t EventType) (Event, bool) {
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Type == t {
			return r.Events[i], true
		}
	}
	return Event{}, false
}
