package resilience

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Breaker state per dependency: 0 closed, 0.5 half-open, 1 open",
	}, []string{"breaker"})

	breakerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_calls_total",
		Help: "Calls made through a circuit breaker by outcome (success, failure, rejected, canceled)",
	}, []string{"breaker", "outcome"})

	breakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_state_changes_total",
		Help: "Circuit breaker state transitions",
	}, []string{"breaker", "from", "to"})

	anonymousBreakers atomic.Uint64
)

// breakerMetrics holds the series of a single breaker
type breakerMetrics struct {
	name     string
	success  prometheus.Counter
	failure  prometheus.Counter
	rejected prometheus.Counter
	canceled prometheus.Counter
}

func newBreakerMetrics(name string) *breakerMetrics {
	m := &breakerMetrics{
		name:     name,
		success:  breakerCallsTotal.WithLabelValues(name, "success"),
		failure:  breakerCallsTotal.WithLabelValues(name, "failure"),
		rejected: breakerCallsTotal.WithLabelValues(name, "rejected"),
		canceled: breakerCallsTotal.WithLabelValues(name, "canceled"),
	}
	m.state(gobreaker.StateClosed)
	return m
}

func (m *breakerMetrics) state(s gobreaker.State) {
	var v float64
	switch s {
	case gobreaker.StateHalfOpen:
		v = 0.5
	case gobreaker.StateOpen:
		v = 1
	}
	breakerStateGauge.WithLabelValues(m.name).Set(v)
}

func (m *breakerMetrics) transition(from, to gobreaker.State) {
	breakerTransitionsTotal.WithLabelValues(m.name, from.String(), to.String()).Inc()
	m.state(to)
}

func breakerName(name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("breaker-%d", anonymousBreakers.Add(1))
}
