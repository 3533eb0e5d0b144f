package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/config"
	"github.com/sweeney/pickplace/internal/control"
	"github.com/sweeney/pickplace/internal/device"
	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/mqtt"
	"github.com/sweeney/pickplace/internal/pwm"
	"github.com/sweeney/pickplace/internal/status"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("NetworkInfo: got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want connected", info.Status)
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", "json", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "control").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info logged at warn level")
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("json log line: %v (%q)", err, out)
	}
	if line["component"] != "control" || line["message"] != "shown" {
		t.Errorf("log line: got %v", line)
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, err := newLogger("loud", "json", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := newLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	sc := statusConfig(cfg)

	if sc.TickMs != 10 {
		t.Errorf("TickMs: got %d, want 10", sc.TickMs)
	}
	if sc.Targets != 9 {
		t.Errorf("Targets: got %d, want 9", sc.Targets)
	}
	if sc.HeartbeatMs != (15 * time.Minute).Milliseconds() {
		t.Errorf("HeartbeatMs: got %d", sc.HeartbeatMs)
	}
	if sc.ThresholdCM != 8 {
		t.Errorf("ThresholdCM: got %v, want 8", sc.ThresholdCM)
	}
}

// bench is a controller wired by buildHardware onto fakes.
type bench struct {
	pins   *gpio.FakePins
	ranger *device.FakeRanger
	keys   *device.FakeKeypad
	clk    *clock.Fake
	hw     control.Hardware
	ctrl   *control.Controller
}

func newBench(t *testing.T, sink control.Sink) *bench {
	t.Helper()
	cfg := config.Default()
	b := &bench{
		pins:   gpio.NewFakePins(),
		ranger: &device.FakeRanger{Readings: []float64{5}},
		keys:   &device.FakeKeypad{},
		clk:    clock.NewFake(t0),
	}
	// Carriage parked on the limit switch.
	b.pins.Set(cfg.GPIO.Limit, false)
	b.hw = buildHardware(cfg, b.pins, pwm.NewFakeDriver(), b.keys, b.ranger, b.clk)
	b.ctrl = control.New(b.hw, cfg.Control(), b.clk, zerolog.Nop(), sink)
	if err := b.ctrl.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

func TestBuildHardwareWiring(t *testing.T) {
	cfg := config.Default()
	b := newBench(t, nil)

	b.pins.Set(cfg.GPIO.Stop, false)
	b.ranger.Readings = []float64{12.34}

	line, err := readState(b.hw, b.clk)
	if err != nil {
		t.Fatalf("readState: %v", err)
	}
	for _, want := range []string{
		"STOP: PRESSED",
		"HOME: RELEASED",
		"LIMIT: PRESSED",
		"DISTANCE: 12.3 cm [NEAR]",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("state %q missing %q", line, want)
		}
	}
}

func TestReadStateRangingError(t *testing.T) {
	b := newBench(t, nil)
	b.ranger.Readings = []float64{device.NoEcho}

	line, err := readState(b.hw, b.clk)
	if err != nil {
		t.Fatalf("readState: %v", err)
	}
	if !strings.HasSuffix(line, "DISTANCE: ERROR") {
		t.Errorf("state: got %q", line)
	}
}

func TestBenchHardwareSharesDevices(t *testing.T) {
	b := newBench(t, nil)
	d := benchHardware(b.hw)
	if d.Gripper != b.hw.Gripper || d.Stop != b.hw.Stop || d.Grip != b.hw.Grip {
		t.Error("bench hardware should reuse the controller's devices")
	}
}

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// runRunLoop drives runLoop for nTicks and then delivers signal.
func runRunLoop(t *testing.T, d loopDeps, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), d, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func newLoopDeps(t *testing.T, heartbeat, step time.Duration) (loopDeps, *mqtt.FakePublisher, *status.Tracker) {
	t.Helper()
	tracker := status.NewTracker(t0, statusConfig(config.Default()))
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	b := newBench(t, tracker)
	return loopDeps{
		ctrl:      b.ctrl,
		publisher: pub,
		status:    pub,
		tracker:   tracker,
		heartbeat: heartbeat,
		now:       fakeClock(t0, step),
		log:       zerolog.Nop(),
	}, pub, tracker
}

func TestRunLoopHomesThenShutsDown(t *testing.T) {
	d, pub, tracker := newLoopDeps(t, 0, 100*time.Millisecond)

	if err := runRunLoop(t, d, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := d.ctrl.State(); got != control.StateWaitInput {
		t.Errorf("state: got %s, want WAIT_INPUT", got)
	}
	snap := tracker.Snapshot()
	if snap.Counts.Homings != 1 {
		t.Errorf("homings: got %d, want 1", snap.Counts.Homings)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should see the MQTT connection")
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGTERM" || !se.Retained {
		t.Errorf("shutdown event: got %+v", se)
	}

	var payload status.StatusJSON
	if err := json.Unmarshal(se.RawPayload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Status.State != "WAIT_INPUT" || !payload.Status.Ready {
		t.Errorf("payload state: got %s ready=%v", payload.Status.State, payload.Status.Ready)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0, 100*time.Millisecond)

	if err := runRunLoop(t, d, 0, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("system events: got %+v", pub.SystemEvents)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Each tick reads the clock once: t0 at start, then +10m per tick.
	d, pub, _ := newLoopDeps(t, 15*time.Minute, 10*time.Minute)

	if err := runRunLoop(t, d, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(pub.SystemEvents))
	}
	hb := pub.SystemEvents[0]
	if hb.Event != "HEARTBEAT" {
		t.Errorf("first event: got %q, want HEARTBEAT", hb.Event)
	}
	if hb.Retained {
		t.Error("heartbeat should not be retained")
	}
	if !bytes.Contains(hb.RawPayload, []byte(`"event":"HEARTBEAT"`)) {
		t.Errorf("heartbeat payload: %s", hb.RawPayload)
	}
	if pub.SystemEvents[1].Event != "SHUTDOWN" {
		t.Errorf("second event: got %q, want SHUTDOWN", pub.SystemEvents[1].Event)
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.42")

	d, pub, _ := newLoopDeps(t, 15*time.Minute, 10*time.Minute)
	if err := runRunLoop(t, d, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var payload status.StatusJSON
	if err := json.Unmarshal(pub.SystemEvents[0].RawPayload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Status.Network == nil || payload.Status.Network.IP != "192.168.1.42" {
		t.Errorf("network: got %+v", payload.Status.Network)
	}
}

func TestRunLoopWithoutTelemetry(t *testing.T) {
	d, _, _ := newLoopDeps(t, time.Minute, time.Minute)
	d.publisher = nil
	d.status = nil

	if err := runRunLoop(t, d, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

func TestRunLoopContextCancel(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runLoop(ctx, d, make(chan time.Time), make(chan os.Signal)); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 0 {
		t.Errorf("cancel without a signal should publish nothing, got %d", len(pub.SystemEvents))
	}
}

func TestRunLoopQueuedSignalAfterCancel(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM
	cancel()

	if err := runLoop(ctx, d, make(chan time.Time), sig); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("system events: got %+v", pub.SystemEvents)
	}
}
