package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventspool/internal/store"
)

// StoreMetrics records event store activity on a private registry.
//
// Metrics:
//   - eventspool_store_operations_total{op,result}
//   - eventspool_store_operation_duration_seconds{op}
//   - eventspool_store_pending_events
//   - eventspool_gateway_sent_events_total
type StoreMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pending    prometheus.Gauge
	sent       prometheus.Counter
}

func New() *StoreMetrics {
	m := &StoreMetrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventspool",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Store operations by outcome",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eventspool",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing store operations on the lane",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"op"},
		),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventspool",
			Subsystem: "store",
			Name:      "pending_events",
			Help:      "Events buffered and not yet delivered",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventspool",
			Subsystem: "gateway",
			Name:      "sent_events_total",
			Help:      "Events acknowledged by the gateway",
		}),
	}
	m.registry.MustRegister(m.operations, m.duration, m.pending, m.sent)
	return m
}

// ObserveOperation implements store.Observer.
func (m *StoreMetrics) ObserveOperation(op string, d time.Duration, err error) {
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func resultLabel(err error) string {
	var ce *store.ConstraintError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ce):
		return "constraint"
	default:
		return "error"
	}
}

func (m *StoreMetrics) SetPending(n int) { m.pending.Set(float64(n)) }

func (m *StoreMetrics) AddSent(n int) { m.sent.Add(float64(n)) }

func (m *StoreMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *StoreMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
