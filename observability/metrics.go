package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics records escrow transition activity for the /metrics
// endpoint.
type EscrowMetrics struct {
	transitions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	escrowMetricsOnce sync.Once
	escrowRegistry    *EscrowMetrics
)

// Escrow returns the lazily-initialised escrow metrics registry.
func Escrow() *EscrowMetrics {
	escrowMetricsOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapvault",
				Subsystem: "escrow",
				Name:      "transitions_total",
				Help:      "Total escrow transitions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swapvault",
				Subsystem: "escrow",
				Name:      "transition_duration_seconds",
				Help:      "Latency distribution for escrow transitions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(escrowRegistry.transitions, escrowRegistry.latency)
	})
	return escrowRegistry
}

// Observe records a completed transition attempt.
func (m *EscrowMetrics) Observe(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
}
