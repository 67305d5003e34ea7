// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes recorded by ObserveRows.
const (
	RowImported         = "imported"
	RowSkippedDuplicate = "skipped_duplicate"
	RowSkippedInvalid   = "skipped_invalid"
	RowFlaggedDuplicate = "flagged_duplicate"
	RowCategorized      = "categorized"
)

// ImportMetrics groups the collectors registered for imports.
type ImportMetrics struct {
	registry *prometheus.Registry

	imports  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the import collectors on a dedicated registry together with
// the Go runtime and process collectors.
func New() *ImportMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ImportMetrics{
		registry: reg,
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echo",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Import runs by terminal state.",
		}, []string{"state"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echo",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows processed by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echo",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Wall time of an import run by terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"state"}),
	}
	reg.MustRegister(m.imports, m.rows, m.duration)
	return m
}

// ObserveRun records one finished import.
func (m *ImportMetrics) ObserveRun(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(state).Inc()
	m.duration.WithLabelValues(state).Observe(elapsed.Seconds())
}

// ObserveRows adds n rows for an outcome. Zero counts are ignored.
func (m *ImportMetrics) ObserveRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(n))
}

// Registry returns the underlying registry.
func (m *ImportMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ImportMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
