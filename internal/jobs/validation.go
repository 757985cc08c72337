package jobs

import (
	"log/slog"
	"strings"

	"github.com/sevigo/precedent/internal/core"
)

// ValidateSuggestionsByLine checks suggestions against the changed lines of
// each reviewed file. It returns two slices: inline suggestions that sit on a
// changed line, and file-level ones whose line number is unset or points
// outside the diff. Off-diff line numbers are cleared.
//
// origins[i] is the file suggestions[i] was generated for. A suggestion
// naming a file outside the request is moved to its origin at file level;
// without a known origin it is dropped.
func ValidateSuggestionsByLine(logger *slog.Logger, suggestions []core.Suggestion, origins []string, validLineMaps map[string]map[int]struct{}) ([]core.Suggestion, []core.Suggestion) {
	if len(validLineMaps) == 0 {
		logger.Warn("valid files map is empty, skipping suggestion validation")
		return suggestions, nil
	}

	var inline []core.Suggestion
	var fileLevel []core.Suggestion

	for i, s := range suggestions {
		cleanPath := strings.TrimPrefix(s.FilePath, "./")
		lines, exists := validLineMaps[cleanPath]
		if !exists {
			origin := ""
			if i < len(origins) {
				origin = origins[i]
			}
			if _, ok := validLineMaps[origin]; !ok {
				logger.Warn("dropping suggestion for a file outside the request",
					"original", s.FilePath,
					"normalized", cleanPath,
				)
				continue
			}
			logger.Warn("moving suggestion for a file outside the request to its reviewed file",
				"original", s.FilePath,
				"file", origin,
			)
			s.FilePath = origin
			s.LineNumber = 0
			fileLevel = append(fileLevel, s)
			continue
		}
		s.FilePath = cleanPath

		if s.LineNumber == 0 {
			fileLevel = append(fileLevel, s)
			continue
		}
		if _, lineExists := lines[s.LineNumber]; lineExists {
			inline = append(inline, s)
			continue
		}

		logger.Debug("moving suggestion to file level (off-diff line)",
			"file", cleanPath,
			"line", s.LineNumber,
		)
		s.LineNumber = 0
		fileLevel = append(fileLevel, s)
	}
	return inline, fileLevel
}
