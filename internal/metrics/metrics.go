// Package metrics exposes the engine's diagnostic counters (spec.md
// §4.8) both as Prometheus collectors, for scraping, and as a plain
// struct for in-process inspection by the read-only API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds every diagnostic counter the engine maintains.
type Metrics struct {
	EventsProcessed  prometheus.Counter
	EventsMalformed  prometheus.Counter
	EventsDropped    prometheus.Counter
	LatchSuspends    prometheus.Counter
	LatchResumes     prometheus.Counter
	SinkFailures     prometheus.Counter
}

// New creates a Metrics set and registers it against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from the global
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_events_processed_total",
			Help: "Events successfully processed by the engine.",
		}),
		EventsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_events_malformed_total",
			Help: "Events rejected for failing basic validation.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_events_dropped_total",
			Help: "Events dropped for a non-malformed reason without being dispatched to rules.",
		}),
		LatchSuspends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_latch_suspend_transitions_total",
			Help: "Allowed to Suspended dedup latch transitions.",
		}),
		LatchResumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_latch_resume_transitions_total",
			Help: "Suspended to Allowed dedup latch transitions.",
		}),
		SinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_sink_failures_total",
			Help: "Action sink delivery failures.",
		}),
	}

	reg.MustRegister(
		m.EventsProcessed,
		m.EventsMalformed,
		m.EventsDropped,
		m.LatchSuspends,
		m.LatchResumes,
		m.SinkFailures,
	)
	return m
}

// Snapshot is a point-in-time read of every counter, for the read-only
// inspection API (§4.9) which should not force JSON consumers to parse
// the Prometheus text exposition format.
type Snapshot struct {
	EventsProcessed float64 `json:"events_processed"`
	EventsMalformed float64 `json:"events_malformed"`
	EventsDropped   float64 `json:"events_dropped"`
	LatchSuspends   float64 `json:"latch_suspends"`
	LatchResumes    float64 `json:"latch_resumes"`
	SinkFailures    float64 `json:"sink_failures"`
}

func readCounter(c prometheus.Counter) float64 {
	var pb dto.Metric
	_ = c.Write(&pb)
	return pb.GetCounter().GetValue()
}

// Read takes a point-in-time snapshot of every counter.
func (m *Metrics) Read() Snapshot {
	return Snapshot{
		EventsProcessed: readCounter(m.EventsProcessed),
		EventsMalformed: readCounter(m.EventsMalformed),
		EventsDropped:   readCounter(m.EventsDropped),
		LatchSuspends:   readCounter(m.LatchSuspends),
		LatchResumes:    readCounter(m.LatchResumes),
		SinkFailures:    readCounter(m.SinkFailures),
	}
}
