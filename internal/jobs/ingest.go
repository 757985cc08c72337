package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/precedent/internal/core"
)

// Ingester embeds and stores review records.
type Ingester interface {
	Ingest(ctx context.Context, records []core.ReviewRecord) (*core.IngestReport, error)
}

// StoreMonitor is told when a batch has changed the vector store.
type StoreMonitor interface {
	Refresh(ctx context.Context)
}

// IngestJob is a background job that loads one batch into the vector store.
type IngestJob struct {
	ingester Ingester
	monitor  StoreMonitor
	logger   *slog.Logger
}

// NewIngestJob creates the job. monitor may be nil.
func NewIngestJob(ingester Ingester, monitor StoreMonitor, logger *slog.Logger) core.Job {
	if ingester == nil {
		panic("ingester cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &IngestJob{ingester: ingester, monitor: monitor, logger: logger}
}

func (j *IngestJob) Run(ctx context.Context, batch *core.IngestBatch) error {
	if batch == nil {
		return errors.New("batch cannot be nil")
	}

	report, err := j.ingester.Ingest(ctx, batch.Records)
	if err != nil {
		return fmt.Errorf("failed to ingest batch %s: %w", batch.ID, err)
	}

	j.logger.Info("ingest batch completed",
		"batch", batch.ID,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
	)
	if j.monitor != nil && report.Inserted > 0 {
		j.monitor.Refresh(ctx)
	}
	return nil
}
