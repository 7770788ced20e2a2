// Package metrics exposes Prometheus instrumentation for the interview
// gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec

	UtterancesTotal *prometheus.CounterVec
	TurnDuration    prometheus.Histogram

	QuestionsServed prometheus.Counter

	UpstreamErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "viva"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active interview sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total interview sessions by terminal status",
		},
		[]string{"status"},
	)

	utterancesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total utterances processed by resolved intent",
		},
		[]string{"intent"},
	)

	turnDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency from audio receipt to reply",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	questionsServed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_served_total",
			Help:      "Total bank questions served to clients",
		},
	)

	upstreamErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total upstream service failures",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		utterancesTotal,
		turnDuration,
		questionsServed,
		upstreamErrorsTotal,
	)

	return &Metrics{
		registry:            registry,
		SessionsActive:      sessionsActive,
		SessionsTotal:       sessionsTotal,
		UtterancesTotal:     utterancesTotal,
		TurnDuration:        turnDuration,
		QuestionsServed:     questionsServed,
		UpstreamErrorsTotal: upstreamErrorsTotal,
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart records a new session opening.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending. Status is "completed" when the
// time budget ran out and "ended" for an explicit end request.
func (m *Metrics) RecordSessionEnd(status string) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
}

// RecordTurn records one processed utterance.
func (m *Metrics) RecordTurn(intent string, duration time.Duration) {
	m.UtterancesTotal.WithLabelValues(intent).Inc()
	m.TurnDuration.Observe(duration.Seconds())
}

// RecordQuestion records a bank question served.
func (m *Metrics) RecordQuestion() {
	m.QuestionsServed.Inc()
}

// RecordUpstreamError records a failure from an external service
// ("stt", "tts", or "llm").
func (m *Metrics) RecordUpstreamError(service string) {
	m.UpstreamErrorsTotal.WithLabelValues(service).Inc()
}
