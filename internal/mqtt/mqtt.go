// Package mqtt publishes controller telemetry over MQTT with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pickplace/internal/control"
)

// Topic is the MQTT topic for workflow events.
const Topic = "robot/pickplace/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "robot/pickplace/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a workflow event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event control.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	PickPlace EventPayload `json:"pickplace"`
}

// EventPayload contains the workflow event details.
type EventPayload struct {
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	State      string  `json:"state"`
	Cycle      string  `json:"cycle,omitempty"`
	Target     int     `json:"target,omitempty"`
	PositionMM float64 `json:"position_mm"`
	DistanceCM float64 `json:"distance_cm,omitempty"`
	Gripper    string  `json:"gripper"`
	Drifted    bool    `json:"drifted,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// GripperState names the gripper flag.
func GripperState(closed bool) string {
	if closed {
		return "CLOSED"
	}
	return "OPEN"
}

// FormatPayload creates the JSON payload for a workflow event.
func FormatPayload(event control.Event) ([]byte, error) {
	payload := Payload{
		PickPlace: EventPayload{
			Timestamp:  event.Time.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			State:      event.State.String(),
			Cycle:      event.CycleID,
			Target:     event.Target,
			PositionMM: event.PositionMM,
			DistanceCM: event.DistanceCM,
			Gripper:    GripperState(event.GripperClosed),
			Drifted:    event.Drifted,
			Reason:     event.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
