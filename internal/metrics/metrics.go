// Package metrics exposes controller activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/pickplace/internal/control"
)

const namespace = "pickplace"

// Recorder is a control.Sink that updates Prometheus collectors.
// It owns its registry so tests can run in parallel.
type Recorder struct {
	reg *prometheus.Registry

	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	position    prometheus.Gauge
	drifted     prometheus.Gauge
	gripper     prometheus.Gauge
	distance    prometheus.Histogram
	cycle       prometheus.Histogram

	mu         sync.Mutex
	cycleStart map[string]time.Time
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Controller events by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "State entries by destination state.",
		}, []string{"state"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current workflow state, 0 otherwise.",
		}, []string{"state"}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_mm",
			Help:      "Dead-reckoned rail position.",
		}),
		drifted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_drifted",
			Help:      "1 when the position estimate is untrusted until the next homing.",
		}),
		gripper: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gripper_closed",
			Help:      "1 when the gripper is commanded closed.",
		}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verify_distance_cm",
			Help:      "Ranger readings taken during object verification.",
			Buckets:   []float64{2, 4, 6, 8, 10, 15, 20, 30, 50, 100},
		}),
		cycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time from selection to completed return home.",
			Buckets:   prometheus.LinearBuckets(2, 2, 10),
		}),
		cycleStart: make(map[string]time.Time),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.events, r.transitions, r.state,
		r.position, r.drifted, r.gripper,
		r.distance, r.cycle,
	)
	for _, s := range control.States() {
		r.state.WithLabelValues(s.String()).Set(0)
	}
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handle updates collectors from a controller event.
func (r *Recorder) Handle(e control.Event) {
	r.events.WithLabelValues(string(e.Type)).Inc()
	r.position.Set(e.PositionMM)
	r.drifted.Set(boolGauge(e.Drifted))
	r.gripper.Set(boolGauge(e.GripperClosed))

	switch e.Type {
	case control.EventState:
		r.transitions.WithLabelValues(e.State.String()).Inc()
		for _, s := range control.States() {
			r.state.WithLabelValues(s.String()).Set(boolGauge(s == e.State))
		}
		if e.State == control.StatePickup {
			r.distance.Observe(e.DistanceCM)
		}
	case control.EventRetry:
		r.distance.Observe(e.DistanceCM)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch e.Type {
	case control.EventSelected:
		r.cycleStart[e.CycleID] = e.Time
	case control.EventCycleComplete:
		if start, ok := r.cycleStart[e.CycleID]; ok {
			r.cycle.Observe(e.Time.Sub(start).Seconds())
		}
		delete(r.cycleStart, e.CycleID)
	case control.EventFault, control.EventEStop:
		// The cycle is abandoned.
		delete(r.cycleStart, e.CycleID)
	}
}

// GaugeFunc registers a gauge whose value is read at scrape time.
func (r *Recorder) GaugeFunc(name, help string, fn func() float64) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
