// Package metrics keeps the per-review metrics log and the live Prometheus
// collectors.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/precedent/internal/applog"
	"github.com/sevigo/precedent/internal/core"
)

// Aggregator appends review metrics to an NDJSON log and summarizes them by
// recency window.
type Aggregator struct {
	log    *applog.Log[core.ReviewMetrics]
	now    func() time.Time
	logger *slog.Logger
}

func NewAggregator(path string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		log:    applog.New[core.ReviewMetrics](path, logger),
		now:    time.Now,
		logger: logger,
	}
}

// RecordReviewMetrics appends one line for a completed review.
func (a *Aggregator) RecordReviewMetrics(ctx context.Context, m core.ReviewMetrics) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = a.now().UTC()
	}
	if err := a.log.Append(ctx, m); err != nil {
		return fmt.Errorf("failed to record review metrics: %w", err)
	}
	return nil
}

// SummaryStats totals the reviews recorded within window of now. A window of
// zero or less is empty and yields the zero summary.
func (a *Aggregator) SummaryStats(ctx context.Context, window time.Duration) (*core.SummaryStats, error) {
	if window <= 0 {
		return &core.SummaryStats{}, nil
	}

	end := a.now().UTC()
	start := end.Add(-window)
	stats := &core.SummaryStats{WindowStart: start, WindowEnd: end}

	malformed, err := a.log.Scan(ctx, func(m core.ReviewMetrics) error {
		if m.Timestamp.Before(start) || m.Timestamp.After(end) {
			return nil
		}
		add(stats, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics log: %w", err)
	}
	if malformed > 0 {
		a.logger.Warn("metrics log contains malformed lines", "count", malformed, "path", a.log.Path())
	}

	if stats.Reviews > 0 {
		stats.AverageProcessingTime = stats.TotalProcessingTime / float64(stats.Reviews)
		stats.AverageSuggestions = float64(stats.TotalSuggestions) / float64(stats.Reviews)
	}
	return stats, nil
}

func add(s *core.SummaryStats, m core.ReviewMetrics) {
	s.Reviews++
	s.TotalProcessingTime += m.ProcessingTime
	s.TotalSuggestions += m.Suggestions
	s.FilesReviewed += m.FilesReviewed
	s.VectorQueries += m.VectorQueries
	s.TokensUsed += m.TokensUsed
	if m.Degraded {
		s.DegradedReviews++
	}
	for sev, n := range m.BySeverity {
		if s.BySeverity == nil {
			s.BySeverity = make(map[core.Severity]int)
		}
		s.BySeverity[sev] += n
	}
}
