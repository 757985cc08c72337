package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/diff"
)

var targetFileRegex = regexp.MustCompile(`(?m)^Target file: (.+)$`)

type stubRule struct {
	match      func(line string) bool
	category   string
	severity   string
	confidence float64
	text       string
}

var stubRules = []stubRule{
	{
		match:      containsAny("password =", "password=", "secret =", "secret=", "api_key =", "apikey="),
		category:   "security",
		severity:   "error",
		confidence: 0.8,
		text:       "Avoid hard-coding credentials; load them from configuration or a secret store.",
	},
	{
		match:      containsAny("panic(", "os.Exit("),
		category:   "best_practice",
		severity:   "warning",
		confidence: 0.7,
		text:       "Return an error instead of terminating the process here.",
	},
	{
		match:      containsAny("fmt.Println(", "console.log(", "print(", "System.out.println("),
		category:   "style",
		severity:   "info",
		confidence: 0.6,
		text:       "Remove debug output or route it through the logger.",
	},
	{
		match:      containsAny("TODO", "FIXME"),
		category:   "style",
		severity:   "info",
		confidence: 0.5,
		text:       "Resolve this TODO or link it to a tracked issue before merging.",
	},
}

func containsAny(needles ...string) func(string) bool {
	return func(line string) bool {
		for _, n := range needles {
			if strings.Contains(line, n) {
				return true
			}
		}
		return false
	}
}

const stubMaxSuggestions = 5

// stubGenerator is an offline, deterministic backend. It reads the code
// change back out of the prompt and flags added lines with a few fixed rules.
// The same prompt always yields the same output.
type stubGenerator struct{}

// NewStubGenerator returns the deterministic offline backend.
func NewStubGenerator() Generator {
	return stubGenerator{}
}

func (stubGenerator) Provider() string {
	return config.ProviderStub
}

type stubSuggestion struct {
	FilePath   string  `json:"file_path"`
	LineNumber int     `json:"line_number"`
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Suggestion string  `json:"suggestion"`
}

type stubReview struct {
	Suggestions []stubSuggestion `json:"suggestions"`
	Summary     string           `json:"summary"`
}

func (stubGenerator) Generate(ctx context.Context, prompt string, _ Params) (*Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	review := stubReview{Suggestions: []stubSuggestion{}}
	m := targetFileRegex.FindStringSubmatch(prompt)
	if m != nil {
		file := strings.TrimSpace(m[1])
		for _, line := range addedLines(prompt[strings.Index(prompt, m[0]):]) {
			if len(review.Suggestions) == stubMaxSuggestions {
				break
			}
			for _, rule := range stubRules {
				if rule.match(line.Text) {
					review.Suggestions = append(review.Suggestions, stubSuggestion{
						FilePath:   file,
						LineNumber: line.Number,
						Category:   rule.category,
						Severity:   rule.severity,
						Confidence: rule.confidence,
						Suggestion: rule.text,
					})
					break
				}
			}
		}
	}

	if len(review.Suggestions) == 0 {
		review.Summary = "The offline reviewer found nothing to flag."
	} else {
		review.Summary = fmt.Sprintf("The offline reviewer flagged %d line(s).", len(review.Suggestions))
	}

	out, err := json.Marshal(review)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stub review: %w", err)
	}
	text := string(out)
	return &Generation{Text: text, Model: "stub", TokensUsed: EstimateTokens(prompt) + EstimateTokens(text)}, nil
}

// addedLines reads the hunks that follow the code change heading. Lines
// outside hunks (the rest of the prompt) stop the scan.
func addedLines(section string) []diff.Line {
	var body []string
	inHunk := false
	for _, l := range strings.Split(section, "\n") {
		if strings.HasPrefix(l, "@@") {
			inHunk = true
		}
		if !inHunk {
			continue
		}
		if l == "" || !strings.ContainsAny(l[:1], "@ +-\\") {
			break
		}
		body = append(body, l)
	}

	hunks, err := diff.ParseHunks(strings.Join(body, "\n"))
	if err != nil {
		return nil
	}
	var out []diff.Line
	for _, l := range diff.NewSideLines(hunks) {
		if l.Added {
			out = append(out, l)
		}
	}
	return out
}
