package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/precedent/internal/core"
)

type jobFunc func(ctx context.Context, batch *core.IngestBatch) error

func (f jobFunc) Run(ctx context.Context, batch *core.IngestBatch) error { return f(ctx, batch) }

type ingesterFunc func(ctx context.Context, records []core.ReviewRecord) (*core.IngestReport, error)

func (f ingesterFunc) Ingest(ctx context.Context, records []core.ReviewRecord) (*core.IngestReport, error) {
	return f(ctx, records)
}

type refreshCounter struct{ calls atomic.Int32 }

func (r *refreshCounter) Refresh(context.Context) { r.calls.Add(1) }

func TestDispatcher_RunsEveryBatch(t *testing.T) {
	var processed atomic.Int32
	d := NewDispatcher(jobFunc(func(_ context.Context, _ *core.IngestBatch) error {
		processed.Add(1)
		return nil
	}), 3, testLogger())

	for i := range 20 {
		require.NoError(t, d.Dispatch(context.Background(), &core.IngestBatch{ID: string(rune('a' + i))}))
	}
	d.Stop()

	assert.Equal(t, int32(20), processed.Load())
	assert.ErrorIs(t, d.Dispatch(context.Background(), &core.IngestBatch{}), ErrStopped)
	d.Stop()
}

func TestDispatcher_RejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var started sync.Once
	running := make(chan struct{})
	d := NewDispatcher(jobFunc(func(_ context.Context, _ *core.IngestBatch) error {
		started.Do(func() { close(running) })
		<-release
		return nil
	}), 1, testLogger())

	require.NoError(t, d.Dispatch(context.Background(), &core.IngestBatch{ID: "first"}))
	<-running

	for range queueSize {
		require.NoError(t, d.Dispatch(context.Background(), &core.IngestBatch{}))
	}
	assert.ErrorIs(t, d.Dispatch(context.Background(), &core.IngestBatch{ID: "overflow"}), ErrQueueFull)

	close(release)
	d.Stop()
}

func TestIngestJob_Run(t *testing.T) {
	t.Run("reports success", func(t *testing.T) {
		monitor := &refreshCounter{}
		var got int
		job := NewIngestJob(ingesterFunc(func(_ context.Context, records []core.ReviewRecord) (*core.IngestReport, error) {
			got = len(records)
			return &core.IngestReport{Inserted: len(records)}, nil
		}), monitor, testLogger())

		err := job.Run(context.Background(), &core.IngestBatch{ID: "b1", Records: make([]core.ReviewRecord, 3)})
		require.NoError(t, err)
		assert.Equal(t, 3, got)
		assert.Equal(t, int32(1), monitor.calls.Load(), "store size refreshed after insert")
	})

	t.Run("nothing inserted skips refresh", func(t *testing.T) {
		monitor := &refreshCounter{}
		job := NewIngestJob(ingesterFunc(func(context.Context, []core.ReviewRecord) (*core.IngestReport, error) {
			return &core.IngestReport{Skipped: 2}, nil
		}), monitor, testLogger())

		require.NoError(t, job.Run(context.Background(), &core.IngestBatch{ID: "b3", Records: make([]core.ReviewRecord, 2)}))
		assert.Zero(t, monitor.calls.Load())
	})

	t.Run("wraps ingest errors", func(t *testing.T) {
		boom := errors.New("store down")
		job := NewIngestJob(ingesterFunc(func(context.Context, []core.ReviewRecord) (*core.IngestReport, error) {
			return nil, boom
		}), nil, testLogger())

		err := job.Run(context.Background(), &core.IngestBatch{ID: "b2"})
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "b2")
	})

	t.Run("nil batch", func(t *testing.T) {
		job := NewIngestJob(ingesterFunc(func(context.Context, []core.ReviewRecord) (*core.IngestReport, error) {
			return &core.IngestReport{}, nil
		}), nil, testLogger())
		assert.Error(t, job.Run(context.Background(), nil))
	})
}
