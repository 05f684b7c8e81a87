package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation counters and latencies. All methods are
// nil-safe so an unconfigured store pays no instrumentation cost.
type Metrics struct {
	ops      *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds and registers store metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexivec",
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"op"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexivec",
				Name:      "operation_errors_total",
				Help:      "Total number of failed store operations",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lexivec",
				Name:      "operation_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.ops, m.errors, m.duration)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op).Inc()
	if err != nil {
		m.errors.WithLabelValues(op).Inc()
	}
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
