package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSummaryReportsRecordedMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Migration.RecordResources("asset", "migrated", 5)
	m.Migration.RecordLinkFailures("timeseries", 2)
	m.Migration.ObserveChunkDuration("asset", "write", 0.25)

	var buf bytes.Buffer
	m.LogSummary(slog.New(slog.NewTextHandler(&buf, nil)))

	out := buf.String()
	assert.Contains(t, out, "migration_resources_total")
	assert.Contains(t, out, "status=migrated")
	assert.Contains(t, out, "count=5")
	assert.Contains(t, out, "migration_link_failures_total")
	assert.Contains(t, out, "migration_chunk_duration_seconds")
	assert.Contains(t, out, "samples=1")
}

func TestLogSummarySkipsUntouchedCounters(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	var buf bytes.Buffer
	m.LogSummary(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Empty(t, buf.String())
}
