package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for the migration workbench.
type Metrics struct {
	registry           *prometheus.Registry
	migrationsTotal    *prometheus.CounterVec
	retryAttemptsTotal prometheus.Counter
	runDurationSeconds prometheus.Histogram
	resourcesTotal     *prometheus.GaugeVec
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		migrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gwmigrate_migrations_total",
			Help: "Total migrated resources by category and outcome.",
		}, []string{"category", "outcome"}),
		retryAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gwmigrate_retry_attempts_total",
			Help: "Total migration attempts beyond the first.",
		}),
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gwmigrate_run_duration_seconds",
			Help:    "Duration of full migration runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		resourcesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwmigrate_repository_resources_total",
			Help: "Resources enumerated from the export repository by category.",
		}, []string{"category"}),
	}

	registry.MustRegister(
		m.migrationsTotal,
		m.retryAttemptsTotal,
		m.runDurationSeconds,
		m.resourcesTotal,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResult records one completed resource migration.
func (m *Metrics) ObserveResult(category, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.migrationsTotal.WithLabelValues(category, outcome).Inc()
	if attempts > 1 {
		m.retryAttemptsTotal.Add(float64(attempts - 1))
	}
}

// ObserveRunDuration records the duration of a completed run.
func (m *Metrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDurationSeconds.Observe(duration.Seconds())
}

// SetResourcesTotal sets the enumerated-resource gauge for a category.
func (m *Metrics) SetResourcesTotal(category string, value int) {
	if m == nil {
		return
	}
	m.resourcesTotal.WithLabelValues(category).Set(float64(value))
}
