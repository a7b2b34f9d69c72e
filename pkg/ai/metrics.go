package ai

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Call outcome labels.
const (
	outcomeSuccess  = "success"
	outcomeTimeout  = "timeout"
	outcomeUpstream = "upstream"
	outcomeBudget   = "budget"
)

// Metrics observes generation calls. Registered against an injected
// Registerer so tests and multi-instance wiring never collide on the
// default registry.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.HistogramVec
}

// NewMetrics registers generation metrics on reg. A nil reg yields nil
// Metrics, which disables observation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_generation_calls_total",
			Help: "Generation provider calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lesson_generation_call_seconds",
			Help:    "Generation provider call durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		tokens: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lesson_generation_tokens",
			Help:    "Token counts per generation call.",
			Buckets: prometheus.LinearBuckets(250, 250, 10),
		}, []string{"stage", "kind"}),
	}
	reg.MustRegister(m.calls, m.duration, m.tokens)
	return m
}

func (m *Metrics) observeCall(stage, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(stage, outcome).Inc()
	m.duration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) observeTokens(stage, kind string, count int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(stage, kind).Observe(float64(count))
}
