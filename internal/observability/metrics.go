package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - метрики GraphQL-операций и шины событий.
// Реализует pubsub.Observer.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	published         *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	subscribers       *prometheus.GaugeVec
}

// NewRegistry создает реестр с коллекторами Go runtime и процесса
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewMetrics регистрирует метрики в registry. nil - реестр Prometheus по умолчанию.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphql_operations_total",
				Help: "Total number of GraphQL responses by operation type and outcome",
			},
			[]string{"operation", "outcome"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphql_operation_duration_seconds",
				Help:    "GraphQL response duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),

		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsub_events_published_total",
				Help: "Total number of events published on the bus",
			},
			[]string{"topic"},
		),

		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsub_events_dropped_total",
				Help: "Total number of events dropped because a subscriber buffer was full",
			},
			[]string{"topic"},
		),

		subscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubsub_subscribers",
				Help: "Number of active subscribers",
			},
			[]string{"topic"},
		),
	}
}

// RecordOperation учитывает один ответ GraphQL (outcome: ok или error)
func (m *Metrics) RecordOperation(operation, outcome string, duration time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) Published(topic string) {
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) Dropped(topic string) {
	m.dropped.WithLabelValues(topic).Inc()
}

func (m *Metrics) Subscribed(topic string) {
	m.subscribers.WithLabelValues(topic).Inc()
}

func (m *Metrics) Unsubscribed(topic string) {
	m.subscribers.WithLabelValues(topic).Dec()
}
