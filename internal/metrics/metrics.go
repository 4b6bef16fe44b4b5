// Package metrics exposes Prometheus counters for conversation turns, the
// response gateway and the generate endpoint. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "requirements_agent"

type Metrics struct {
	turns            prometheus.Counter
	sessions         prometheus.Counter
	gatewayFallbacks *prometheus.CounterVec
	phaseTransitions *prometheus.CounterVec
	generateRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "User turns processed.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Conversation sessions started.",
		}),
		gatewayFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_fallbacks_total",
			Help:      "Turns answered with the fallback message, by failure reason.",
		}, []string{"reason"}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Session phase transitions, by target phase.",
		}, []string{"phase"}),
		generateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_requests_total",
			Help:      "Generate endpoint requests, by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.turns, m.sessions, m.gatewayFallbacks, m.phaseTransitions, m.generateRequests)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) Turn() {
	if m == nil {
		return
	}
	m.turns.Inc()
}

func (m *Metrics) GatewayFallback(reason string) {
	if m == nil {
		return
	}
	m.gatewayFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) PhaseTransition(phase string) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(phase).Inc()
}

func (m *Metrics) Generate(outcome string) {
	if m == nil {
		return
	}
	m.generateRequests.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
