package breaker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// breakerMetrics holds Prometheus collectors for circuit breakers
type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

var (
	globalMetrics *breakerMetrics
	metricsOnce   sync.Once
)

// initMetrics registers the collectors exactly once
func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &breakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "provider_circuit_breaker_state",
					Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half_open)",
				},
				[]string{"provider"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_circuit_breaker_requests_total",
					Help: "Requests through the circuit breaker per provider and result",
				},
				[]string{"provider", "result"},
			),
		}
	})
}

func observeState(provider string, state gobreaker.State) {
	initMetrics()
	var value float64
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateOpen:
		value = 1
	case gobreaker.StateHalfOpen:
		value = 2
	}
	globalMetrics.state.WithLabelValues(provider).Set(value)
}

func observeRequest(provider string, success bool) {
	initMetrics()
	result := "success"
	if !success {
		result = "failure"
	}
	globalMetrics.requests.WithLabelValues(provider, result).Inc()
}
