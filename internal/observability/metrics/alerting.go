package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AlertingMetrics contains Prometheus metrics for alert checks and the
// polling watcher
type AlertingMetrics struct {
	registry *prometheus.Registry

	checksTotal        *prometheus.CounterVec
	alertsEmitted      prometheus.Counter
	spikesDetected     prometheus.Counter
	checkDuration      prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
}

// NewAlertingMetrics creates and registers new alerting metrics
func NewAlertingMetrics(registry *prometheus.Registry) (*AlertingMetrics, error) {
	m := &AlertingMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AlertingMetrics) initMetrics() error {
	m.checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_checks_total",
			Help: "Total number of alert checks performed",
		},
		[]string{"status"}, // status: success, error
	)

	m.alertsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerting_alerts_emitted_total",
			Help: "Total number of alert detections returned by checks",
		},
	)

	m.spikesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerting_spikes_detected_total",
			Help: "Total number of detection volume spikes",
		},
	)

	m.checkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alerting_check_duration_seconds",
			Help:    "Time taken for alert checks",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_notifications_total",
			Help: "Total number of notifications emitted by the watcher",
		},
		[]string{"type", "priority"},
	)

	return nil
}

func (m *AlertingMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.checksTotal,
		m.alertsEmitted,
		m.spikesDetected,
		m.checkDuration,
		m.notificationsTotal,
	}
}

// Describe implements the Collector interface
func (m *AlertingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AlertingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordCheck records the outcome and duration of an alert check
func (m *AlertingMetrics) RecordCheck(duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.checksTotal.WithLabelValues(status).Inc()
	m.checkDuration.Observe(duration)
}

// RecordAlerts records the number of alert detections returned by a check
func (m *AlertingMetrics) RecordAlerts(count int) {
	if count > 0 {
		m.alertsEmitted.Add(float64(count))
	}
}

// RecordSpike records a detected volume spike
func (m *AlertingMetrics) RecordSpike() {
	m.spikesDetected.Inc()
}

// RecordNotification records an emitted notification
func (m *AlertingMetrics) RecordNotification(notifType, priority string) {
	m.notificationsTotal.WithLabelValues(notifType, priority).Inc()
}
