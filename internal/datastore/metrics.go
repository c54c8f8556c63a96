package datastore

import (
	"sync/atomic"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/observability/metrics"
)

var queryMetrics atomic.Pointer[metrics.DatastoreMetrics]

// SetMetrics wires Prometheus query instrumentation into the datastore layer.
// Queries run unrecorded until it is called.
func SetMetrics(m *metrics.DatastoreMetrics) {
	queryMetrics.Store(m)
}

// recordQuery records a query outcome when instrumentation is wired.
func recordQuery(operation string, start time.Time, err error) {
	if m := queryMetrics.Load(); m != nil {
		m.RecordQuery(operation, time.Since(start).Seconds(), err)
	}
}
