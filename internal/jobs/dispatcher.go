// Package jobs runs background ingestion batches and anchors generated
// suggestions to diff lines.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sevigo/precedent/internal/core"
)

const queueSize = 100

// ErrQueueFull is returned by Dispatch when the worker pool cannot accept
// another batch.
var ErrQueueFull = errors.New("job queue is full, cannot accept new ingest batch")

// ErrStopped is returned by Dispatch after Stop.
var ErrStopped = errors.New("dispatcher is stopped")

// dispatcher implements core.JobDispatcher and manages a pool of worker
// goroutines that ingest record batches.
type dispatcher struct {
	job        core.Job
	jobQueue   chan *core.IngestBatch
	maxWorkers int
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(job core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.IngestBatch, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes batches from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting ingest worker", "id", workerID)

	for batch := range d.jobQueue {
		d.processBatch(workerID, batch)
	}

	d.logger.Debug("shutting down ingest worker", "id", workerID)
}

func (d *dispatcher) processBatch(workerID int, batch *core.IngestBatch) {
	d.logger.Info("worker processing ingest batch",
		"worker_id", workerID,
		"batch", batch.ID,
		"records", len(batch.Records),
	)

	if err := d.job.Run(d.ctx, batch); err != nil {
		d.logger.Error("ingest job failed",
			"batch", batch.ID,
			"error", err,
		)
	}
}

// Dispatch queues a batch for processing by a worker.
func (d *dispatcher) Dispatch(_ context.Context, batch *core.IngestBatch) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobQueue <- batch:
		d.logger.Info("queued ingest batch", "batch", batch.ID, "records", len(batch.Records))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop gracefully shuts down the dispatcher, waiting for queued batches to
// finish.
func (d *dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	d.wg.Wait()
	d.cancel()
	d.logger.Info("all ingest jobs have finished")
}
