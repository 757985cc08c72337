package rag

import (
	"fmt"
	"strings"

	"github.com/sevigo/precedent/internal/core"
)

// NoteNoContext flags a review generated without similar past reviews.
const NoteNoContext = "Similar past reviews could not be retrieved, so this review was generated without historical context."

const (
	summaryEmpty = "No code changes found to review."
	summaryClean = "No issues found. Code looks good!"
)

// summarize counts suggestions by severity and appends any degradation notes.
func summarize(empty bool, suggestions []core.Suggestion, notes []string) string {
	if empty {
		return summaryEmpty
	}

	var b strings.Builder
	if len(suggestions) == 0 {
		b.WriteString(summaryClean)
	} else {
		counts := core.CountBySeverity(suggestions)
		var parts []string
		if n := counts[core.SeverityError]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d critical issue(s)", n))
		}
		if n := counts[core.SeverityWarning]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d warning(s)", n))
		}
		if n := counts[core.SeverityInfo]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d suggestion(s)", n))
		}
		fmt.Fprintf(&b, "Found %s. Please review the detailed feedback below.", strings.Join(parts, ", "))
	}

	for _, n := range notes {
		b.WriteString("\n\n")
		b.WriteString(n)
	}
	return b.String()
}
