package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	queryOpsTotal    *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	queryErrorsTotal *prometheus.CounterVec
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() error {
	m.queryOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_query_operations_total",
			Help: "Total number of datastore query operations",
		},
		[]string{"operation", "status"}, // operation: search, count, rankings, daily_aggregates, platform_summary
	)

	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_query_duration_seconds",
			Help:    "Time taken for datastore queries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	m.queryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_query_errors_total",
			Help: "Total number of datastore query errors",
		},
		[]string{"operation"},
	)

	return nil
}

func (m *DatastoreMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queryOpsTotal,
		m.queryDuration,
		m.queryErrorsTotal,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordQuery records a datastore query outcome with its duration
func (m *DatastoreMetrics) RecordQuery(operation string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.queryErrorsTotal.WithLabelValues(operation).Inc()
	}
	m.queryOpsTotal.WithLabelValues(operation, status).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(duration)
}
