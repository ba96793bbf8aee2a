package storage

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used in metrics, spans and errors.
const (
	opStart = "start"
	opStop  = "stop"
	opRead  = "read_state"
	opWrite = "write_state"
	opClear = "clear_state"
)

const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Metrics counts extension operations. Several extensions may share one
// Metrics; they are told apart by the name label.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil. Collectors already registered by another extension are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actorstate",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage extension operations by outcome.",
		}, []string{"name", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "actorstate",
			Subsystem: "storage",
			Name:      "operation_seconds",
			Help:      "Storage extension operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"name", "op"}),
	}
	if reg != nil {
		m.ops = register(reg, m.ops)
		m.latency = register(reg, m.latency)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observe(name, op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(name, op, outcome).Inc()
	m.latency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
