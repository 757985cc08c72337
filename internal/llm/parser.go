package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sevigo/precedent/internal/core"
)

// ParseResult is either Parsed or Failed.
type ParseResult interface {
	isParseResult()
}

// Parsed carries suggestions that passed schema validation. IDs, PR data and
// provenance are left for the caller to fill.
type Parsed struct {
	Suggestions []core.Suggestion
	Summary     string
}

// Failed carries the raw model output and the ParseError that rejected it.
type Failed struct {
	Raw string
	Err error
}

func (Parsed) isParseResult() {}
func (Failed) isParseResult() {}

type rawReview struct {
	Suggestions *[]rawSuggestion `json:"suggestions"`
	Summary     *string          `json:"summary"`
}

type rawSuggestion struct {
	FilePath   *string  `json:"file_path"`
	LineNumber *int     `json:"line_number"`
	Category   *string  `json:"category"`
	Severity   *string  `json:"severity"`
	Confidence *float64 `json:"confidence"`
	Suggestion *string  `json:"suggestion"`
}

// ParseReview validates raw model output against the review schema. Nothing
// is default-filled: a missing or out-of-range field fails the whole output.
func ParseReview(raw string) ParseResult {
	review, err := decodeReview(raw)
	if err != nil {
		return Failed{Raw: raw, Err: core.NewError(core.KindParse, "parse review", fmt.Errorf("%w: %w", core.ErrSchemaMismatch, err))}
	}
	return *review
}

func decodeReview(raw string) (*Parsed, error) {
	body := stripCodeFence(raw)
	if !strings.HasPrefix(body, "{") {
		return nil, errors.New("output is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var doc rawReview
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected content after the JSON object")
	}
	if doc.Suggestions == nil {
		return nil, errors.New(`missing "suggestions"`)
	}

	out := &Parsed{Suggestions: make([]core.Suggestion, 0, len(*doc.Suggestions))}
	if doc.Summary != nil {
		out.Summary = strings.TrimSpace(*doc.Summary)
	}
	for i, rs := range *doc.Suggestions {
		s, err := rs.toSuggestion()
		if err != nil {
			return nil, fmt.Errorf("suggestion %d: %w", i, err)
		}
		out.Suggestions = append(out.Suggestions, s)
	}
	return out, nil
}

func (rs rawSuggestion) toSuggestion() (core.Suggestion, error) {
	var s core.Suggestion

	switch {
	case rs.FilePath == nil || strings.TrimSpace(*rs.FilePath) == "":
		return s, errors.New(`missing "file_path"`)
	case rs.Suggestion == nil || strings.TrimSpace(*rs.Suggestion) == "":
		return s, errors.New(`missing "suggestion"`)
	case rs.Category == nil:
		return s, errors.New(`missing "category"`)
	case rs.Severity == nil:
		return s, errors.New(`missing "severity"`)
	case rs.Confidence == nil:
		return s, errors.New(`missing "confidence"`)
	}

	category := core.Category(strings.ToLower(strings.TrimSpace(*rs.Category)))
	if !category.Valid() {
		return s, fmt.Errorf("unknown category %q", *rs.Category)
	}
	severity := core.Severity(strings.ToLower(strings.TrimSpace(*rs.Severity)))
	if !severity.Valid() {
		return s, fmt.Errorf("unknown severity %q", *rs.Severity)
	}
	if c := *rs.Confidence; c < 0 || c > 1 {
		return s, fmt.Errorf("confidence %v outside [0,1]", c)
	}
	if rs.LineNumber != nil && *rs.LineNumber <= 0 {
		return s, fmt.Errorf("line_number %d is not positive", *rs.LineNumber)
	}

	s.FilePath = strings.TrimSpace(*rs.FilePath)
	if rs.LineNumber != nil {
		s.LineNumber = *rs.LineNumber
	}
	s.Category = category
	s.Severity = severity
	s.Confidence = *rs.Confidence
	s.Comment = strings.TrimSpace(*rs.Suggestion)
	return s, nil
}

// stripCodeFence removes a ```json ... ``` (or bare ```) wrapping that some
// models add around their output.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	idx := strings.Index(trimmed, "\n")
	if idx < 0 {
		return trimmed
	}
	inner := trimmed[idx+1:]
	if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
		inner = inner[:lastFence]
	}
	return strings.TrimSpace(inner)
}
