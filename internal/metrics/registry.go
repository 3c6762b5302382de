package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus collectors for the dashboard.
// All methods are safe to call on a nil *Registry.
type Registry struct {
	reg *prometheus.Registry

	// Analytics API fetches
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Panel state machine
	PanelTransitions *prometheus.CounterVec
	StaleResponses   *prometheus.CounterVec

	// Live sessions (page renders and websocket connections)
	ActiveSessions prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec
}

// NewRegistry creates a registry with all dashboard collectors registered on
// a private prometheus.Registry plus the standard Go and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundboard_fetch_total",
				Help: "Analytics API fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundboard_fetch_duration_seconds",
				Help:    "Analytics API fetch latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint"},
		),

		PanelTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundboard_panel_transitions_total",
				Help: "Committed panel state transitions by panel and state",
			},
			[]string{"panel", "state"},
		),

		StaleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundboard_panel_stale_responses_total",
				Help: "Responses dropped because a newer request superseded them",
			},
			[]string{"panel"},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fundboard_active_sessions",
				Help: "Number of dashboard shells currently mounted",
			},
		),

		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundboard_sessions_total",
				Help: "Dashboard shells mounted by kind",
			},
			[]string{"kind"},
		),
	}

	r.reg.MustRegister(
		r.FetchTotal,
		r.FetchDuration,
		r.PanelTransitions,
		r.StaleResponses,
		r.ActiveSessions,
		r.SessionsTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// RecordFetch records the outcome and latency of one analytics API call
func (r *Registry) RecordFetch(endpoint, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FetchTotal.WithLabelValues(endpoint, outcome).Inc()
	r.FetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTransition records a committed panel state
func (r *Registry) RecordTransition(panel, state string) {
	if r == nil {
		return
	}
	r.PanelTransitions.WithLabelValues(panel, state).Inc()
}

// RecordStale records a dropped superseded response
func (r *Registry) RecordStale(panel string) {
	if r == nil {
		return
	}
	r.StaleResponses.WithLabelValues(panel).Inc()
	log.Debug().Str("panel", panel).Msg("Dropped stale panel response")
}

// SessionStarted increments the active session gauge
func (r *Registry) SessionStarted(kind string) {
	if r == nil {
		return
	}
	r.ActiveSessions.Inc()
	r.SessionsTotal.WithLabelValues(kind).Inc()
}

// SessionEnded decrements the active session gauge
func (r *Registry) SessionEnded() {
	if r == nil {
		return
	}
	r.ActiveSessions.Dec()
}

// Handler returns an HTTP handler serving the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
