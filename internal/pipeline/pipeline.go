// Package pipeline provides a generic bounded-queue download/process/write
// executor with progress tracking and cooperative error propagation. It is
// the concurrency backbone of the migration commands.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxQueueSize bounds the queues between stages when unset.
const DefaultMaxQueueSize = 10

// Config configures an executor.
type Config struct {
	// Description names the run in progress logs, e.g. "migrate assets".
	Description string
	// MaxQueueSize bounds the queue between stages. The producer blocks when
	// the writer falls this many chunks behind.
	MaxQueueSize int
	// IterationCount is an estimate of the number of chunks, used only for
	// progress display. Completion is determined by queue closure, never by
	// this count.
	IterationCount int
	Logger         *slog.Logger
}

// Executor runs the three-stage pipeline: download produces chunks, process
// is a pure per-chunk transform, write performs the side-effecting upload.
type Executor[In, Out any] struct {
	cfg      Config
	download func(ctx context.Context, emit func(In) error) error
	process  func(ctx context.Context, chunk In) (Out, error)
	write    func(ctx context.Context, chunk Out) error

	chunksDone atomic.Int64
	totalItems atomic.Int64

	mu           sync.Mutex
	errOccurred  bool
	errorMessage string
}

// New creates an executor. All three stages are required.
func New[In, Out any](
	cfg Config,
	download func(ctx context.Context, emit func(In) error) error,
	process func(ctx context.Context, chunk In) (Out, error),
	write func(ctx context.Context, chunk Out) error,
) *Executor[In, Out] {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor[In, Out]{
		cfg:      cfg,
		download: download,
		process:  process,
		write:    write,
	}
}

// Run executes the pipeline until the producer is exhausted or a stage
// fails. A stage error cancels the others cooperatively; in-flight chunks
// drain rather than being killed. The error is also recorded on the
// executor, and callers are expected to check ErrorOccurred after Run.
func (e *Executor[In, Out]) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	downloaded := make(chan In, e.cfg.MaxQueueSize)
	processed := make(chan Out, e.cfg.MaxQueueSize)

	group.Go(func() error {
		defer close(downloaded)
		return e.download(ctx, func(chunk In) error {
			select {
			case downloaded <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	group.Go(func() error {
		defer close(processed)
		for chunk := range downloaded {
			out, err := e.process(ctx, chunk)
			if err != nil {
				return err
			}
			select {
			case processed <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	group.Go(func() error {
		for chunk := range processed {
			if err := e.write(ctx, chunk); err != nil {
				return err
			}
			done := e.chunksDone.Add(1)
			if e.cfg.IterationCount > 0 {
				e.cfg.Logger.Info("progress",
					"description", e.cfg.Description,
					"chunk", done,
					"estimated_chunks", e.cfg.IterationCount)
			} else {
				e.cfg.Logger.Info("progress",
					"description", e.cfg.Description,
					"chunk", done)
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		e.mu.Lock()
		e.errOccurred = true
		e.errorMessage = err.Error()
		e.mu.Unlock()
		return err
	}
	return nil
}

// RecordItems adds n to the processed item counter, called by stages.
func (e *Executor[In, Out]) RecordItems(n int64) {
	e.totalItems.Add(n)
}

// TotalItems returns the number of items recorded by the stages.
func (e *Executor[In, Out]) TotalItems() int64 {
	return e.totalItems.Load()
}

// ChunksDone returns the number of fully written chunks.
func (e *Executor[In, Out]) ChunksDone() int64 {
	return e.chunksDone.Load()
}

// ErrorOccurred reports whether any stage failed.
func (e *Executor[In, Out]) ErrorOccurred() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errOccurred
}

// ErrorMessage returns the captured message of the first stage failure.
func (e *Executor[In, Out]) ErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorMessage
}
