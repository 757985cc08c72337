package metrics

import (
	"context"

	"github.com/sevigo/precedent/internal/core"
)

// Recorder feeds finished reviews to both the live collectors and, for
// completed reviews, the metrics log.
type Recorder struct {
	aggregator *Aggregator
	collectors *Collectors
	model      string
}

func NewRecorder(aggregator *Aggregator, collectors *Collectors, model string) *Recorder {
	return &Recorder{aggregator: aggregator, collectors: collectors, model: model}
}

// RecordReview observes the review and appends its metrics unless it failed.
func (r *Recorder) RecordReview(ctx context.Context, status string, m core.ReviewMetrics, suggestions []core.Suggestion) error {
	r.collectors.ObserveReview(status, r.model, m, suggestions)
	if status == StatusFailed {
		return nil
	}
	return r.aggregator.RecordReviewMetrics(ctx, m)
}
