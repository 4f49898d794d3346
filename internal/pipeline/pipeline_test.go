package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_ProcessesAllChunksInOrder(t *testing.T) {
	var mu sync.Mutex
	var written []int

	e := New(
		Config{Description: "test", MaxQueueSize: 2, IterationCount: 5, Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error {
			for i := range 5 {
				if err := emit(i); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, chunk int) (int, error) {
			return chunk * 10, nil
		},
		func(ctx context.Context, chunk int) error {
			mu.Lock()
			written = append(written, chunk)
			mu.Unlock()
			return nil
		},
	)

	require.NoError(t, e.Run(context.Background()))
	assert.False(t, e.ErrorOccurred())
	assert.Equal(t, []int{0, 10, 20, 30, 40}, written)
	assert.Equal(t, int64(5), e.ChunksDone())
}

func TestRun_WriterErrorStopsProducer(t *testing.T) {
	produced := 0

	e := New(
		Config{MaxQueueSize: 1, Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error {
			for i := range 1000 {
				produced = i + 1
				if err := emit(i); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, chunk int) (int, error) { return chunk, nil },
		func(ctx context.Context, chunk int) error {
			return assert.AnError
		},
	)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, e.ErrorOccurred())
	assert.Equal(t, assert.AnError.Error(), e.ErrorMessage())
	// Backpressure keeps the producer close to the failure point instead of
	// racing through all 1000 chunks.
	assert.Less(t, produced, 100)
}

func TestRun_ProcessErrorPropagates(t *testing.T) {
	e := New(
		Config{Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error {
			return emit(1)
		},
		func(ctx context.Context, chunk int) (int, error) {
			return 0, assert.AnError
		},
		func(ctx context.Context, chunk int) error { return nil },
	)

	require.Error(t, e.Run(context.Background()))
	assert.True(t, e.ErrorOccurred())
}

func TestRun_BoundedQueueAppliesBackpressure(t *testing.T) {
	var mu sync.Mutex
	maxAhead := 0
	writtenCount := 0
	producedCount := 0

	release := make(chan struct{})

	e := New(
		Config{MaxQueueSize: 2, Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error {
			for i := range 20 {
				mu.Lock()
				producedCount = i + 1
				ahead := producedCount - writtenCount
				if ahead > maxAhead {
					maxAhead = ahead
				}
				mu.Unlock()
				if err := emit(i); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, chunk int) (int, error) { return chunk, nil },
		func(ctx context.Context, chunk int) error {
			<-release
			mu.Lock()
			writtenCount++
			mu.Unlock()
			return nil
		},
	)

	go func() {
		for range 20 {
			release <- struct{}{}
		}
	}()

	require.NoError(t, e.Run(context.Background()))
	// Two bounded queues of 2 plus one chunk in each stage's hands.
	assert.LessOrEqual(t, maxAhead, 2*2+3)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := New(
		Config{MaxQueueSize: 1, Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error {
			for i := 0; ; i++ {
				if err := emit(i); err != nil {
					return err
				}
			}
		},
		func(ctx context.Context, chunk int) (int, error) { return chunk, nil },
		func(ctx context.Context, chunk int) error {
			time.Sleep(time.Millisecond)
			return ctx.Err()
		},
	)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := e.Run(ctx)
	require.Error(t, err)
	assert.True(t, e.ErrorOccurred())
}

func TestRecordItems(t *testing.T) {
	e := New(
		Config{Logger: discardLogger()},
		func(ctx context.Context, emit func(int) error) error { return emit(1) },
		func(ctx context.Context, chunk int) (int, error) { return chunk, nil },
		func(ctx context.Context, chunk int) error { return nil },
	)
	e.RecordItems(7)
	e.RecordItems(3)
	assert.Equal(t, int64(10), e.TotalItems())
}
