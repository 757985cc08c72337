package core

// Category classifies what a suggestion is about.
type Category string

const (
	CategoryStyle        Category = "style"
	CategoryBug          Category = "bug"
	CategoryPerformance  Category = "performance"
	CategorySecurity     Category = "security"
	CategoryBestPractice Category = "best_practice"
)

// Categories lists every recognized category in a stable order.
var Categories = []Category{
	CategoryStyle,
	CategoryBug,
	CategoryPerformance,
	CategorySecurity,
	CategoryBestPractice,
}

// Valid reports whether c is one of the recognized categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity ranks how urgent a suggestion is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Severities lists every recognized severity from most to least urgent.
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInfo}

// Valid reports whether s is one of the recognized severities.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// Suggestion represents a single piece of feedback for a code change.
// LineNumber is zero when the finding is not tied to a specific line.
type Suggestion struct {
	ID         string   `json:"id"`
	Repository string   `json:"repository,omitempty"`
	PRNumber   int      `json:"pr_number"`
	FilePath   string   `json:"file_path"`
	LineNumber int      `json:"line_number,omitempty"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Comment    string   `json:"suggestion"`
	Confidence float64  `json:"confidence"`
	Provenance []string `json:"provenance"`
}

// StructuredReview is the parsed form of one generation response.
type StructuredReview struct {
	Summary     string       `json:"summary"`
	Suggestions []Suggestion `json:"suggestions"`
}

// CountBySeverity tallies suggestions per severity. Every known severity is
// present in the result, including those with a zero count.
func CountBySeverity(suggestions []Suggestion) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, sev := range Severities {
		counts[sev] = 0
	}
	for _, s := range suggestions {
		counts[s.Severity]++
	}
	return counts
}
