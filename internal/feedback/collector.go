// Package feedback records developer judgments on generated suggestions.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/precedent/internal/applog"
	"github.com/sevigo/precedent/internal/core"
)

// Collector appends feedback to an NDJSON log and derives statistics from it.
type Collector struct {
	log    *applog.Log[core.FeedbackEntry]
	now    func() time.Time
	logger *slog.Logger
}

func NewCollector(path string, logger *slog.Logger) *Collector {
	return &Collector{
		log:    applog.New[core.FeedbackEntry](path, logger),
		now:    time.Now,
		logger: logger,
	}
}

// RecordFeedback validates entry, stamps it if it has no timestamp and
// appends it as one line.
func (c *Collector) RecordFeedback(ctx context.Context, entry core.FeedbackEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now().UTC()
	}

	if err := c.log.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	c.logger.Info("feedback recorded",
		"suggestion_id", entry.SuggestionID,
		"pr_number", entry.PRNumber,
		"helpful", entry.WasHelpful,
	)
	return nil
}

// Stats recomputes totals and helpful ratios by scanning the whole log.
func (c *Collector) Stats(ctx context.Context) (*core.FeedbackStats, error) {
	stats := core.NewFeedbackStats()
	malformed, err := c.log.Scan(ctx, func(e core.FeedbackEntry) error {
		stats.Add(e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback log: %w", err)
	}
	stats.MalformedLines = malformed
	if malformed > 0 {
		c.logger.Warn("feedback log contains malformed lines", "count", malformed, "path", c.log.Path())
	}
	return stats, nil
}
