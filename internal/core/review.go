package core

import (
	"fmt"
	"strings"
	"time"
)

// Limits applied to historical records before they are embedded.
const (
	MaxCommentChars = 10000
	MaxSnippetChars = 50000
)

// ReviewRecord is one historical review comment together with the code it
// was attached to. Records are immutable once stored and unique by ID.
type ReviewRecord struct {
	ID          string       `json:"id" yaml:"id"`
	Repository  string       `json:"repository" yaml:"repository"`
	PRNumber    int          `json:"pr_number" yaml:"pr_number"`
	FilePath    string       `json:"file_path" yaml:"file_path"`
	StartLine   int          `json:"start_line,omitempty" yaml:"start_line"`
	EndLine     int          `json:"end_line,omitempty" yaml:"end_line"`
	DiffSnippet string       `json:"diff_snippet" yaml:"diff_snippet"`
	Comment     string       `json:"comment" yaml:"comment"`
	Category    Category     `json:"category,omitempty" yaml:"category"`
	Severity    Severity     `json:"severity,omitempty" yaml:"severity"`
	Language    CodeLanguage `json:"language,omitempty" yaml:"language"`
	Reviewer    string       `json:"reviewer,omitempty" yaml:"reviewer"`
	WasResolved bool         `json:"was_resolved,omitempty" yaml:"was_resolved"`
	CreatedAt   time.Time    `json:"created_at,omitzero" yaml:"created_at"`
	IngestedAt  time.Time    `json:"ingested_at,omitzero" yaml:"ingested_at"`
	Embedding   []float32    `json:"-" yaml:"-"`
}

// Document returns the text that represents the record in the vector store.
func (r *ReviewRecord) Document() string {
	return fmt.Sprintf("Code:\n%s\n\nReview Comment:\n%s", r.DiffSnippet, r.Comment)
}

// Validate checks that a record is fit for ingestion.
func (r *ReviewRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("record id is required")
	case strings.TrimSpace(r.Repository) == "":
		return fmt.Errorf("record %s: repository is required", r.ID)
	case strings.TrimSpace(r.Comment) == "":
		return fmt.Errorf("record %s: comment is required", r.ID)
	case len(r.Comment) > MaxCommentChars:
		return fmt.Errorf("record %s: comment exceeds %d characters", r.ID, MaxCommentChars)
	case len(r.DiffSnippet) > MaxSnippetChars:
		return fmt.Errorf("record %s: diff snippet exceeds %d characters", r.ID, MaxSnippetChars)
	case r.Category != "" && !r.Category.Valid():
		return fmt.Errorf("record %s: unknown category %q", r.ID, r.Category)
	case r.Severity != "" && !r.Severity.Valid():
		return fmt.Errorf("record %s: unknown severity %q", r.ID, r.Severity)
	case r.StartLine < 0 || r.EndLine < 0 || (r.EndLine != 0 && r.EndLine < r.StartLine):
		return fmt.Errorf("record %s: invalid line range %d-%d", r.ID, r.StartLine, r.EndLine)
	}
	return nil
}

// ScoredRecord is a retrieval hit.
type ScoredRecord struct {
	Record     ReviewRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}

// ReviewResult is what a review request returns to its caller.
type ReviewResult struct {
	Suggestions    []Suggestion                   `json:"suggestions"`
	Summary        string                         `json:"summary"`
	ProcessingTime time.Duration                  `json:"processing_time"`
	StageTimings   map[RequestState]time.Duration `json:"stage_timings,omitempty"`
	Degraded       bool                           `json:"degraded"`
	State          RequestState                   `json:"state"`
}
