package core

import (
	"fmt"
	"strings"
	"time"
)

// UncategorizedKey groups feedback entries that carry no category.
const UncategorizedKey = "uncategorized"

// FeedbackEntry is a developer's judgment on one suggestion.
type FeedbackEntry struct {
	SuggestionID string    `json:"suggestion_id"`
	PRNumber     int       `json:"pr_number"`
	WasHelpful   bool      `json:"was_helpful"`
	Comment      string    `json:"developer_comment,omitempty"`
	Category     Category  `json:"category,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate checks the fields the feedback log relies on.
func (e *FeedbackEntry) Validate() error {
	if strings.TrimSpace(e.SuggestionID) == "" {
		return NewError(KindValidation, "validate feedback", fmt.Errorf("suggestion_id is required"))
	}
	if e.PRNumber <= 0 {
		return NewError(KindValidation, "validate feedback", fmt.Errorf("invalid pull request number: %d", e.PRNumber))
	}
	if e.Category != "" && !e.Category.Valid() {
		return NewError(KindValidation, "validate feedback", fmt.Errorf("unknown category %q", e.Category))
	}
	return nil
}

// RatioStats is a helpful/total pair.
type RatioStats struct {
	Total        int     `json:"total"`
	Helpful      int     `json:"helpful"`
	HelpfulRatio float64 `json:"helpful_ratio"`
}

func (r *RatioStats) add(helpful bool) {
	r.Total++
	if helpful {
		r.Helpful++
	}
	r.HelpfulRatio = float64(r.Helpful) / float64(r.Total)
}

// FeedbackStats is recomputed from the full feedback log.
type FeedbackStats struct {
	RatioStats
	NotHelpful     int                   `json:"not_helpful"`
	ByCategory     map[string]RatioStats `json:"by_category"`
	MalformedLines int                   `json:"malformed_lines,omitempty"`
}

// NewFeedbackStats returns an empty, ready to fill stats value.
func NewFeedbackStats() *FeedbackStats {
	return &FeedbackStats{ByCategory: make(map[string]RatioStats)}
}

// Add folds one entry into the stats.
func (s *FeedbackStats) Add(e FeedbackEntry) {
	s.add(e.WasHelpful)
	if !e.WasHelpful {
		s.NotHelpful++
	}

	key := string(e.Category)
	if key == "" {
		key = UncategorizedKey
	}
	cat := s.ByCategory[key]
	cat.add(e.WasHelpful)
	s.ByCategory[key] = cat
}
