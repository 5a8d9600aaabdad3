// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded on AuthAttempts.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	AuthAttempts    *prometheus.CounterVec
	SessionsStarted *prometheus.CounterVec
	SessionsEnded   prometheus.Counter
	SecretsStored   prometheus.Counter
}

// New registers the collectors on a private registry so that several
// instances (tests, multiple apps) never collide.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secrets",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secrets",
			Name:      "sessions_started_total",
			Help:      "Sessions started by authentication method.",
		}, []string{"method"}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secrets",
			Name:      "sessions_ended_total",
			Help:      "Sessions destroyed by logout.",
		}),
		SecretsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secrets",
			Name:      "secrets_stored_total",
			Help:      "Secret submissions written.",
		}),
	}

	m.registry.MustRegister(
		m.AuthAttempts,
		m.SessionsStarted,
		m.SessionsEnded,
		m.SecretsStored,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Attempt(method, outcome string) {
	m.AuthAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
