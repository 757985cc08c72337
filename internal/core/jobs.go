package core

import (
	"context"
)

// IngestBatch is one batch of historical records handed over by the
// ingestion collaborator.
type IngestBatch struct {
	ID      string         `json:"id"`
	Records []ReviewRecord `json:"records"`
}

// IngestReport summarizes what happened to a batch.
type IngestReport struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Reasons  []string `json:"reasons,omitempty"`
}

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing.
type JobDispatcher interface {
	// Dispatch queues a batch for processing. It returns an error if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, batch *IngestBatch) error
	// Stop drains the queue and waits for in-flight jobs.
	Stop()
}

// Job is a single executable unit of work run by the dispatcher.
type Job interface {
	Run(ctx context.Context, batch *IngestBatch) error
}
