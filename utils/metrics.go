package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はリング操作のカウンタとレイテンシを保持する
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics はリング操作のメトリクスを reg に登録する
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assassin_ring_operations_total",
			Help: "Ring mutating operations by outcome code.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assassin_ring_operation_seconds",
			Help:    "Latency of ring mutating operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.latency)
	return m
}

func (m *Metrics) Observe(op, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}
