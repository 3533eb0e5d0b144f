package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Ready         bool         `json:"ready"`
	Target        int          `json:"target,omitempty"`
	Cycle         string       `json:"cycle,omitempty"`
	PositionMM    float64      `json:"position_mm"`
	Drifted       bool         `json:"drifted"`
	Gripper       string       `json:"gripper"`
	LastFault     string       `json:"last_fault,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Cycles  int `json:"cycles"`
	Faults  int `json:"faults"`
	Retries int `json:"retries"`
	EStops  int `json:"estops"`
	Homings int `json:"homings"`
	Manual  int `json:"manual"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64   `json:"tick_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	ThresholdCM float64 `json:"threshold_cm"`
	Targets     int     `json:"targets"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
	File        string  `json:"file,omitempty"`
}

// StateName returns the state label, UNKNOWN before the first event.
func (s Snapshot) StateName() string {
	if !s.Started {
		return "UNKNOWN"
	}
	return s.State.String()
}

// Gripper returns OPEN or CLOSED.
func (s Snapshot) Gripper() string {
	if s.GripperClosed {
		return "CLOSED"
	}
	return "OPEN"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		State:         snap.StateName(),
		Ready:         snap.Ready(),
		Target:        snap.Target,
		Cycle:         snap.CycleID,
		PositionMM:    snap.PositionMM,
		Drifted:       snap.Drifted,
		Gripper:       snap.Gripper(),
		LastFault:     snap.LastFault,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:  snap.Counts.Cycles,
			Faults:  snap.Counts.Faults,
			Retries: snap.Counts.Retries,
			EStops:  snap.Counts.EStops,
			Homings: snap.Counts.Homings,
			Manual:  snap.Counts.Manual,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			ThresholdCM: snap.Config.ThresholdCM,
			Targets:     snap.Config.Targets,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			File:        snap.Config.File,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
