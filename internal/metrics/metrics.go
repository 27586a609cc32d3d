// Package metrics provides Prometheus metrics for the colony runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the colony.
type Metrics struct {
	MessagesPublished prometheus.Counter
	RoleCyclesTotal   *prometheus.CounterVec
	ActFailuresTotal  *prometheus.CounterVec
	ActDuration       *prometheus.HistogramVec
	RolesRegistered   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "colony_messages_published_total",
				Help: "Total messages published to the environment bus.",
			},
		),
		RoleCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_role_cycles_total",
				Help: "Role run cycles by role and result (acted, idle, error).",
			},
			[]string{"role", "result"},
		),
		ActFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_act_failures_total",
				Help: "Act-phase failures by role.",
			},
			[]string{"role"},
		),
		ActDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colony_act_duration_seconds",
				Help:    "Act-phase duration by role.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		RolesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "colony_roles_registered",
				Help: "Number of roles attached to the environment.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.MessagesPublished)
	reg.MustRegister(m.RoleCyclesTotal)
	reg.MustRegister(m.ActFailuresTotal)
	reg.MustRegister(m.ActDuration)
	reg.MustRegister(m.RolesRegistered)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle increments the cycle counter.
func (m *Metrics) RecordCycle(role, result string) {
	m.RoleCyclesTotal.WithLabelValues(role, result).Inc()
}

// RecordActFailure increments the act failure counter.
func (m *Metrics) RecordActFailure(role string) {
	m.ActFailuresTotal.WithLabelValues(role).Inc()
}

// ObserveAct records act-phase duration.
func (m *Metrics) ObserveAct(role string, seconds float64) {
	m.ActDuration.WithLabelValues(role).Observe(seconds)
}
