package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Operations counts completed operations by op (push, noop, undo, redo, load).
	Operations *prometheus.CounterVec

	// StorageErrors counts failed history log writes and reads by op.
	StorageErrors *prometheus.CounterVec

	// ConsistencyErrors counts consistency errors by code.
	ConsistencyErrors *prometheus.CounterVec

	// Evictions counts entries dropped from the head of a history.
	Evictions prometheus.Counter

	// WriteDuration tracks background write latency by op.
	WriteDuration *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg registers with a private registry, which keeps metrics
// observable in tests without touching the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rewind_history_operations_total",
			Help: "Total history operations by op",
		}, []string{"op"}),

		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rewind_history_storage_errors_total",
			Help: "Total history log failures by op",
		}, []string{"op"}),

		ConsistencyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rewind_history_consistency_errors_total",
			Help: "Total history consistency errors by code",
		}, []string{"code"}),

		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewind_history_evictions_total",
			Help: "Total entries evicted from the head of a history",
		}),

		WriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rewind_history_write_duration_seconds",
			Help:    "History log write duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
		}, []string{"op"}),
	}
}
