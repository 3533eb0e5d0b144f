package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/pickplace/internal/control"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestStateGaugeTracksCurrentState(t *testing.T) {
	r := New()

	r.Handle(control.Event{Type: control.EventState, State: control.StateHoming})
	r.Handle(control.Event{Type: control.EventState, State: control.StateIdle})

	if got := testutil.ToFloat64(r.state.WithLabelValues("IDLE")); got != 1 {
		t.Errorf("IDLE gauge: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.state.WithLabelValues("HOMING")); got != 0 {
		t.Errorf("HOMING gauge: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("HOMING")); got != 1 {
		t.Errorf("HOMING transitions: got %v, want 1", got)
	}
}

func TestEventCountsAndGauges(t *testing.T) {
	r := New()

	r.Handle(control.Event{Type: control.EventManual, PositionMM: 50, Drifted: true, GripperClosed: true})
	r.Handle(control.Event{Type: control.EventManual, PositionMM: 50, Drifted: true})

	if got := testutil.ToFloat64(r.events.WithLabelValues("MANUAL")); got != 2 {
		t.Errorf("MANUAL events: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.position); got != 50 {
		t.Errorf("position: got %v, want 50", got)
	}
	if got := testutil.ToFloat64(r.drifted); got != 1 {
		t.Errorf("drifted: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.gripper); got != 0 {
		t.Errorf("gripper: got %v, want 0", got)
	}
}

func TestCycleDurationObserved(t *testing.T) {
	r := New()

	r.Handle(control.Event{Type: control.EventSelected, CycleID: "a", Time: t0})
	r.Handle(control.Event{Type: control.EventCycleComplete, CycleID: "a", Time: t0.Add(7 * time.Second)})

	if got := testutil.CollectAndCount(r.cycle); got != 1 {
		t.Fatalf("cycle collectors: got %d, want 1", got)
	}
	expected := `
# HELP pickplace_cycle_duration_seconds Time from selection to completed return home.
# TYPE pickplace_cycle_duration_seconds histogram
pickplace_cycle_duration_seconds_bucket{le="2"} 0
pickplace_cycle_duration_seconds_bucket{le="4"} 0
pickplace_cycle_duration_seconds_bucket{le="6"} 0
pickplace_cycle_duration_seconds_bucket{le="8"} 1
pickplace_cycle_duration_seconds_bucket{le="10"} 1
pickplace_cycle_duration_seconds_bucket{le="12"} 1
pickplace_cycle_duration_seconds_bucket{le="14"} 1
pickplace_cycle_duration_seconds_bucket{le="16"} 1
pickplace_cycle_duration_seconds_bucket{le="18"} 1
pickplace_cycle_duration_seconds_bucket{le="20"} 1
pickplace_cycle_duration_seconds_bucket{le="+Inf"} 1
pickplace_cycle_duration_seconds_sum 7
pickplace_cycle_duration_seconds_count 1
`
	if err := testutil.CollectAndCompare(r.cycle, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestAbandonedCycleNotObserved(t *testing.T) {
	r := New()

	r.Handle(control.Event{Type: control.EventSelected, CycleID: "a", Time: t0})
	r.Handle(control.Event{Type: control.EventEStop, CycleID: "a", Time: t0.Add(time.Second)})
	r.Handle(control.Event{Type: control.EventCycleComplete, CycleID: "a", Time: t0.Add(5 * time.Second)})

	if len(r.cycleStart) != 0 {
		t.Errorf("cycleStart: got %d entries, want 0", len(r.cycleStart))
	}
	if !strings.Contains(scrape(t, r), "pickplace_cycle_duration_seconds_count 0") {
		t.Error("abandoned cycle should not be observed")
	}
}

func TestDistanceObservedOnVerifyOnly(t *testing.T) {
	r := New()

	r.Handle(control.Event{Type: control.EventFault, DistanceCM: -1})
	r.Handle(control.Event{Type: control.EventState, State: control.StateIdle})
	r.Handle(control.Event{Type: control.EventRetry, State: control.StateVerifyObject, DistanceCM: 12.5})
	r.Handle(control.Event{Type: control.EventState, State: control.StatePickup, DistanceCM: 0})

	body := scrape(t, r)
	if !strings.Contains(body, "pickplace_verify_distance_cm_count 2") {
		t.Errorf("expected two distance observations:\n%s", body)
	}
	if !strings.Contains(body, "pickplace_verify_distance_cm_sum 12.5") {
		t.Error("expected distance sum 12.5")
	}
	if !strings.Contains(body, `pickplace_verify_distance_cm_bucket{le="2"} 1`) {
		t.Error("a 0 cm reading should land in the lowest bucket")
	}
}

func TestGaugeFuncScraped(t *testing.T) {
	r := New()
	dropped := 3.0
	r.GaugeFunc("telemetry_dropped", "Events dropped.", func() float64 { return dropped })

	if !strings.Contains(scrape(t, r), "pickplace_telemetry_dropped 3") {
		t.Error("gauge func value missing from scrape")
	}
}

func TestHandlerServesRuntimeMetrics(t *testing.T) {
	body := scrape(t, New())
	for _, want := range []string{"go_goroutines", `pickplace_state{state="INIT"} 0`} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}
