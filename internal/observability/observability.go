// Package observability provides metrics collection for the toolkit.
package observability

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognitedata/cdf-tk/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Migration *metrics.MigrationMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	migrationMetrics, err := metrics.NewMigrationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Migration: migrationMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LogSummary gathers the registry and logs every non-zero counter and every
// observed histogram, giving one-shot CLI runs a readable record of what was
// counted without a scrape endpoint.
func (m *Metrics) LogSummary(logger *slog.Logger) {
	families, err := m.registry.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var attrs []any
			for _, label := range metric.GetLabel() {
				attrs = append(attrs, label.GetName(), label.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				if value := metric.GetCounter().GetValue(); value > 0 {
					logger.Info(family.GetName(), append([]any{"count", value}, attrs...)...)
				}
			case metric.GetHistogram() != nil:
				histogram := metric.GetHistogram()
				if histogram.GetSampleCount() > 0 {
					logger.Info(family.GetName(), append([]any{
						"samples", histogram.GetSampleCount(),
						"total_seconds", histogram.GetSampleSum(),
					}, attrs...)...)
				}
			}
		}
	}
}
