package core

import "time"

// ReviewMetrics is appended to the metrics log once per completed review.
type ReviewMetrics struct {
	Timestamp      time.Time                `json:"timestamp"`
	PRNumber       int                      `json:"pr_number"`
	Repository     string                   `json:"repository"`
	ProcessingTime float64                  `json:"processing_time"`
	StageTimings   map[RequestState]float64 `json:"stage_timings,omitempty"`
	BySeverity     map[Severity]int         `json:"suggestions_by_severity"`
	Suggestions    int                      `json:"suggestions"`
	FilesReviewed  int                      `json:"files_reviewed"`
	VectorQueries  int                      `json:"vector_queries"`
	TokensUsed     int                      `json:"tokens_used"`
	Degraded       bool                     `json:"degraded,omitempty"`
}

// SummaryStats aggregates the metrics log over a recency window. The zero
// value is the summary of an empty window.
type SummaryStats struct {
	WindowStart           time.Time        `json:"window_start,omitzero"`
	WindowEnd             time.Time        `json:"window_end,omitzero"`
	Reviews               int              `json:"reviews"`
	TotalProcessingTime   float64          `json:"total_processing_time"`
	AverageProcessingTime float64          `json:"average_processing_time"`
	TotalSuggestions      int              `json:"total_suggestions"`
	AverageSuggestions    float64          `json:"average_suggestions"`
	BySeverity            map[Severity]int `json:"suggestions_by_severity,omitempty"`
	FilesReviewed         int              `json:"files_reviewed"`
	VectorQueries         int              `json:"vector_queries"`
	TokensUsed            int              `json:"tokens_used"`
	DegradedReviews       int              `json:"degraded_reviews"`
}

// Vector store health states.
const (
	StoreUp   = "up"
	StoreDown = "down"
)

// StoreHealth is a point-in-time view of the vector store.
type StoreHealth struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	Status     string `json:"status"`
	Documents  int    `json:"documents"`
	Error      string `json:"error,omitempty"`
}

// Healthy reports whether the store answered its last check.
func (h StoreHealth) Healthy() bool {
	return h.Status == StoreUp
}
