package rag

import (
	"context"
	"fmt"

	"github.com/sevigo/precedent/internal/core"
)

// Ingest validates, embeds and stores records. Invalid records are skipped
// with a reason; nothing is written if the context ends before the store
// call.
func (s *ragService) Ingest(ctx context.Context, records []core.ReviewRecord) (*core.IngestReport, error) {
	report := &core.IngestReport{}
	valid := make([]core.ReviewRecord, 0, len(records))
	now := s.now().UTC()

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid review record", "id", rec.ID, "reason", err)
			report.Skipped++
			report.Reasons = append(report.Reasons, err.Error())
			continue
		}
		if rec.IngestedAt.IsZero() {
			rec.IngestedAt = now
		}
		if rec.Language == "" && rec.FilePath != "" {
			rec.Language = core.LanguageFromPath(rec.FilePath)
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return report, nil
	}

	texts := make([]string, len(valid))
	for i := range valid {
		texts[i] = valid[i].Document()
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed review records: %w", classify(ctx, err))
	}
	for i := range valid {
		valid[i].Embedding = vectors[i]
	}

	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.KindTransientProvider, "ingest", err)
	}
	if err := s.retriever.Upsert(ctx, valid); err != nil {
		return nil, fmt.Errorf("failed to store review records: %w", classify(ctx, err))
	}

	report.Inserted = len(valid)
	s.logger.Info("ingested review records", "inserted", report.Inserted, "skipped", report.Skipped)
	return report, nil
}
