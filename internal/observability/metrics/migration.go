// Package metrics provides Prometheus metric collectors for the toolkit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains Prometheus metrics for migration runs
type MigrationMetrics struct {
	registry *prometheus.Registry

	resourcesTotal   *prometheus.CounterVec
	conversionIssues *prometheus.CounterVec
	linkFailures     *prometheus.CounterVec
	chunkDuration    *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewMigrationMetrics creates and registers new migration metrics
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *MigrationMetrics) initMetrics() error {
	m.resourcesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_resources_total",
			Help: "Total number of resources by migration outcome",
		},
		[]string{"resource_type", "status"}, // status: migrated, would_migrate, failed
	)

	m.conversionIssues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_conversion_issues_total",
			Help: "Total number of conversion issues by kind",
		},
		[]string{"resource_type", "kind"},
	)

	m.linkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_link_failures_total",
			Help: "Total number of pending-instance-id link failures",
		},
		[]string{"resource_type"},
	)

	m.chunkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_chunk_duration_seconds",
			Help:    "Time taken to process one chunk",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"resource_type", "stage"}, // stage: convert, write
	)

	m.collectors = []prometheus.Collector{
		m.resourcesTotal,
		m.conversionIssues,
		m.linkFailures,
		m.chunkDuration,
	}
	return nil
}

// Describe implements prometheus.Collector
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordResources counts n resources with the given outcome.
func (m *MigrationMetrics) RecordResources(resourceType, status string, n int) {
	m.resourcesTotal.WithLabelValues(resourceType, status).Add(float64(n))
}

// RecordConversionIssues counts n conversion issues of one kind.
func (m *MigrationMetrics) RecordConversionIssues(resourceType, kind string, n int) {
	if n > 0 {
		m.conversionIssues.WithLabelValues(resourceType, kind).Add(float64(n))
	}
}

// RecordLinkFailures counts n link failures.
func (m *MigrationMetrics) RecordLinkFailures(resourceType string, n int) {
	if n > 0 {
		m.linkFailures.WithLabelValues(resourceType).Add(float64(n))
	}
}

// ObserveChunkDuration records the duration of one chunk stage in seconds.
func (m *MigrationMetrics) ObserveChunkDuration(resourceType, stage string, seconds float64) {
	m.chunkDuration.WithLabelValues(resourceType, stage).Observe(seconds)
}
