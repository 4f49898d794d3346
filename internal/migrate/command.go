package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
	"github.com/cognitedata/cdf-tk/internal/observability/metrics"
	"github.com/cognitedata/cdf-tk/internal/pipeline"
)

// Options configures a Migrator.
type Options struct {
	Client   *cdf.Client
	Registry *MappingRegistry
	Metrics  *metrics.MigrationMetrics
	Logger   *slog.Logger

	// ChunkSize bounds the items per API call, capped at ChunkSize.
	ChunkSize int
	// MaxQueueSize bounds how far the producer may run ahead of the writer.
	MaxQueueSize int
	// CapacityMargin is the fraction of the instance quota kept free, e.g.
	// 0.1 refuses runs that would fill the project past 90%.
	CapacityMargin float64
	// IssueLogDir is the directory for the per-run conversion issue log.
	IssueLogDir string

	// DryRun runs the full read and convert path but performs no mutating
	// API call.
	DryRun bool
	// SkipLinking bypasses pending-instance-id registration for kinds that
	// support it. Kinds without support never link regardless.
	SkipLinking bool

	// Verbose echoes per-chunk success counts to Output while the run
	// progresses. Output defaults to discarding when unset.
	Verbose bool
	Output  io.Writer
}

// Migrator drives one migration run: pre-flight validation, streaming,
// conversion, linking and upload.
type Migrator struct {
	client         *cdf.Client
	registry       *MappingRegistry
	metrics        *metrics.MigrationMetrics
	logger         *slog.Logger
	chunkSize      int
	maxQueueSize   int
	capacityMargin float64
	issueLogDir    string
	dryRun         bool
	skipLinking    bool
	verbose        bool
	output         io.Writer
}

// NewMigrator creates a migrator. Client is required; everything else has a
// usable default.
func NewMigrator(opts Options) *Migrator {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultMappings()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 || chunkSize > ChunkSize {
		chunkSize = ChunkSize
	}
	margin := opts.CapacityMargin
	if margin < 0 || margin >= 1 {
		margin = 0.1
	}
	issueLogDir := opts.IssueLogDir
	if issueLogDir == "" {
		issueLogDir = "logs"
	}
	output := opts.Output
	if output == nil {
		output = io.Discard
	}
	return &Migrator{
		client:         opts.Client,
		registry:       registry,
		metrics:        opts.Metrics,
		logger:         logger,
		chunkSize:      chunkSize,
		maxQueueSize:   opts.MaxQueueSize,
		capacityMargin: margin,
		issueLogDir:    issueLogDir,
		dryRun:         opts.DryRun,
		skipLinking:    opts.SkipLinking,
		verbose:        opts.Verbose,
		output:         output,
	}
}

// MigrationResult summarizes one run.
type MigrationResult struct {
	RunID        string
	ResourceType cdf.ResourceType
	Requested    int64
	Migrated     int64
	Failed       int64
	LinkFailed   int64
	DryRun       bool
	IssueLogPath string
	Elapsed      time.Duration
}

// Summary renders the one-line outcome shown to the operator.
func (r *MigrationResult) Summary() string {
	verb := "Migrated"
	if r.DryRun {
		verb = "Would have migrated"
	}
	return fmt.Sprintf("%s %d of %d %s resources (%d failed, %d link failures)",
		verb, r.Migrated, r.Requested, r.ResourceType, r.Failed, r.LinkFailed)
}

// convertedItem is the outcome of converting one streamed pair. A nil err
// means node is ready for upload.
type convertedItem struct {
	mapping MigrationMapping
	node    cdf.NodeApply
	issue   *ConversionIssue
	err     error
}

// convertedChunk is one processed page, handed from the conversion stage to
// the write stage.
type convertedChunk struct {
	items []convertedItem
}

// Run executes a migration for the selector. limit <= 0 migrates everything
// the selector yields. The returned result is non-nil whenever the run got
// past pre-flight, even if the pipeline then failed partway.
func (m *Migrator) Run(ctx context.Context, selector DataSelector, limit int) (*MigrationResult, error) {
	rt := selector.ResourceType()
	start := time.Now()

	if err := m.validateModelAvailable(ctx); err != nil {
		return nil, err
	}

	var dataSetId int64
	if sel, ok := selector.(*DataSetSelector); ok {
		id, err := m.client.RetrieveDataSetID(ctx, sel.DataSetExternalId)
		if err != nil {
			return nil, err
		}
		dataSetId = id
	}
	if err := m.validateCapabilities(ctx, rt, dataSetId); err != nil {
		return nil, err
	}
	if err := m.validateInstanceSpaces(ctx, selector); err != nil {
		return nil, err
	}

	volume, err := m.estimateVolume(ctx, selector, limit)
	if err != nil {
		return nil, err
	}
	if !m.dryRun {
		if err := m.validateCapacity(ctx, volume); err != nil {
			return nil, err
		}
	}

	names, err := m.ingestionViewNames(selector)
	if err != nil {
		return nil, err
	}
	viewCache, err := m.buildViewCache(ctx, rt, names)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	issueLog, err := NewIssueLog(m.issueLogDir, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = issueLog.Close() }()

	result := &MigrationResult{
		RunID:        runID,
		ResourceType: rt,
		Requested:    volume,
		DryRun:       m.dryRun,
		IssueLogPath: issueLog.Path(),
	}
	m.logger.Info("starting migration",
		"run_id", runID,
		"resource_type", rt.String(),
		"selector", selector.String(),
		"requested", volume,
		"dry_run", m.dryRun)

	var failed, linkFailed atomic.Int64
	streamer := NewStreamer(m.client, m.chunkSize, m.logger)

	iterations := 0
	if volume > 0 {
		iterations = int((volume + int64(m.chunkSize) - 1) / int64(m.chunkSize))
	}

	var executor *pipeline.Executor[Page, convertedChunk]
	executor = pipeline.New(
		pipeline.Config{
			Description:    fmt.Sprintf("migrate %s", rt),
			MaxQueueSize:   m.maxQueueSize,
			IterationCount: iterations,
			Logger:         m.logger,
		},
		func(ctx context.Context, emit func(Page) error) error {
			return streamer.StreamData(ctx, selector, limit, emit)
		},
		func(ctx context.Context, page Page) (convertedChunk, error) {
			return m.convertPage(rt, page, viewCache)
		},
		func(ctx context.Context, chunk convertedChunk) error {
			counts, err := m.writeChunk(ctx, rt, streamer, chunk, issueLog)
			if err != nil {
				return err
			}
			executor.RecordItems(counts.migrated)
			failed.Add(counts.failed)
			linkFailed.Add(counts.linkFailed)
			if m.verbose {
				fmt.Fprintf(m.output, "chunk %d/%d: migrated %d (%d of %d total)\n",
					executor.ChunksDone()+1, iterations, counts.migrated,
					executor.TotalItems(), volume)
			}
			return nil
		},
	)

	runErr := executor.Run(ctx)
	result.Migrated = executor.TotalItems()
	result.Failed = failed.Load()
	result.LinkFailed = linkFailed.Load()
	result.Elapsed = time.Since(start)

	if executor.ErrorOccurred() {
		return result, errors.Newf("migration run %s failed: %s", runID, executor.ErrorMessage()).
			Component("migrate").
			Category(errors.CategoryPipeline).
			Context("resource_type", rt.String()).
			Build()
	}
	if runErr != nil {
		return result, runErr
	}

	m.logger.Info("migration finished",
		"run_id", runID,
		"migrated", result.Migrated,
		"failed", result.Failed,
		"link_failed", result.LinkFailed,
		"elapsed", result.Elapsed.String(),
		"issue_log", result.IssueLogPath)
	return result, nil
}

// convertPage is the pure per-chunk transform. Items that cannot be converted
// carry an error but never abort the chunk.
func (m *Migrator) convertPage(rt cdf.ResourceType, page Page, viewCache map[string]resolvedMapping) (convertedChunk, error) {
	start := time.Now()
	items := make([]convertedItem, 0, len(page.Pairs))

	for _, pair := range page.Pairs {
		item := convertedItem{mapping: pair.Mapping}

		if pair.Mapping.InstanceId.Space == MissingInstanceSpace {
			item.err = errors.Newf("no instance space resolved for %s %d",
				rt, pair.Mapping.LegacyId).
				Component("migrate").
				Category(errors.CategoryValidation).
				Build()
			items = append(items, item)
			continue
		}

		resolved, ok := viewCache[pair.Mapping.EffectiveIngestionView()]
		if !ok {
			// Pre-flight resolves every name the selector can produce, so
			// this indicates a programming error rather than bad input.
			return convertedChunk{}, errors.Newf("ingestion view %q missing from cache",
				pair.Mapping.EffectiveIngestionView()).
				Component("migrate").
				Category(errors.CategoryPipeline).
				Build()
		}

		node, issue, err := ConvertResource(rt, pair.Resource, pair.Mapping.InstanceId,
			resolved.ViewSource, resolved.View)
		item.node = node
		item.issue = issue
		item.err = err
		items = append(items, item)
	}

	if m.metrics != nil {
		m.metrics.ObserveChunkDuration(rt.String(), "convert", time.Since(start).Seconds())
	}
	return convertedChunk{items: items}, nil
}

type chunkCounts struct {
	migrated   int64
	failed     int64
	linkFailed int64
}

// writeChunk is the side-effecting stage: it records issues, links pending
// instance ids and uploads the converted nodes. In dry-run mode it stops at
// the issue log and performs no mutating API call.
func (m *Migrator) writeChunk(ctx context.Context, rt cdf.ResourceType, streamer *Streamer, chunk convertedChunk, issueLog *IssueLog) (chunkCounts, error) {
	start := time.Now()
	var counts chunkCounts

	uploadable := make([]ResourcePair, 0, len(chunk.items))
	nodeByLegacyId := make(map[int64]cdf.NodeApply, len(chunk.items))
	for _, item := range chunk.items {
		if item.issue != nil {
			if err := issueLog.Write(item.issue); err != nil {
				return counts, err
			}
			if m.metrics != nil && !item.issue.Clean() {
				m.metrics.RecordConversionIssues(rt.String(), "conversion", 1)
			}
		}
		if item.err != nil {
			m.logger.Warn("conversion failed",
				"resource_type", rt.String(),
				"id", item.mapping.LegacyId,
				"error", item.err)
			counts.failed++
			continue
		}
		uploadable = append(uploadable, ResourcePair{Mapping: item.mapping})
		nodeByLegacyId[item.mapping.LegacyId] = item.node
	}

	if m.dryRun {
		counts.migrated = int64(len(uploadable))
		m.recordOutcome(rt, counts, time.Since(start))
		return counts, nil
	}

	linked, linkFailures, err := streamer.LinkPendingInstances(ctx, rt, uploadable, m.skipLinking)
	if err != nil {
		return counts, err
	}
	for _, failure := range linkFailures {
		m.logger.Warn("pending instance id link failed",
			"resource_type", rt.String(),
			"id", failure.Mapping.LegacyId,
			"instance", failure.Mapping.InstanceId.String(),
			"error", failure.Err)
		counts.linkFailed++
	}

	if len(linked) == 0 {
		m.recordOutcome(rt, counts, time.Since(start))
		return counts, nil
	}

	nodes := make([]cdf.NodeApply, len(linked))
	for i, pair := range linked {
		nodes[i] = nodeByLegacyId[pair.Mapping.LegacyId]
	}
	results, err := m.client.ApplyInstances(ctx, nodes)
	if err != nil {
		return counts, err
	}
	for i, result := range results {
		if result.Failed() {
			m.logger.Warn("instance write failed",
				"resource_type", rt.String(),
				"instance", linked[i].Mapping.InstanceId.String(),
				"error", result.Err)
			counts.failed++
			continue
		}
		counts.migrated++
	}

	m.recordOutcome(rt, counts, time.Since(start))
	return counts, nil
}

func (m *Migrator) recordOutcome(rt cdf.ResourceType, counts chunkCounts, elapsed time.Duration) {
	if m.metrics == nil {
		return
	}
	status := "migrated"
	if m.dryRun {
		status = "would_migrate"
	}
	m.metrics.RecordResources(rt.String(), status, int(counts.migrated))
	m.metrics.RecordResources(rt.String(), "failed", int(counts.failed))
	m.metrics.RecordLinkFailures(rt.String(), int(counts.linkFailed))
	m.metrics.ObserveChunkDuration(rt.String(), "write", elapsed.Seconds())
}
