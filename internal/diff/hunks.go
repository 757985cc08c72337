// Package diff parses unified-diff hunks and splits file changes into
// prompt-sized code units.
package diff

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// Hunk is one "@@ ... @@" section of a unified diff.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	// Section is the optional function context after the closing "@@".
	Section string
	// Lines holds the body lines with their ' ', '+' or '-' prefix.
	Lines []string
}

// Header renders the hunk's "@@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@%s", h.OldStart, h.OldLines, h.NewStart, h.NewLines, h.Section)
}

// String renders the hunk as patch text.
func (h Hunk) String() string {
	var b strings.Builder
	b.WriteString(h.Header())
	for _, l := range h.Lines {
		b.WriteByte('\n')
		b.WriteString(l)
	}
	return b.String()
}

// Line is a line on the new side of a diff.
type Line struct {
	Number int
	Text   string
	Added  bool
}

// ParseHunks splits patch into hunks. File headers ("diff --git", "---",
// "+++", "index") before the first hunk are ignored. Body lines that are not
// context, additions, removals or "\ No newline" markers are an error, as is
// body text before any hunk header.
func ParseHunks(patch string) ([]Hunk, error) {
	var hunks []Hunk
	var current *Hunk

	for i, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			h, err := parseHeader(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			hunks = append(hunks, h)
			current = &hunks[len(hunks)-1]
			continue
		}

		if current == nil {
			if line == "" || isFileHeader(line) {
				continue
			}
			return nil, fmt.Errorf("line %d: content before first hunk header", i+1)
		}

		switch {
		case line == "":
			// trailing newline at the end of the patch
			continue
		case line[0] == ' ', line[0] == '+', line[0] == '-', line[0] == '\\':
			current.Lines = append(current.Lines, line)
		case isFileHeader(line):
			// next file in a multi-file patch; its hunks follow
			current = nil
		default:
			return nil, fmt.Errorf("line %d: unexpected diff line %q", i+1, truncate(line, 40))
		}
	}
	return hunks, nil
}

func parseHeader(line string) (Hunk, error) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, fmt.Errorf("malformed hunk header %q", truncate(line, 60))
	}
	h := Hunk{Section: m[5]}
	h.OldStart, _ = strconv.Atoi(m[1])
	h.OldLines = 1
	if m[2] != "" {
		h.OldLines, _ = strconv.Atoi(m[2])
	}
	h.NewStart, _ = strconv.Atoi(m[3])
	h.NewLines = 1
	if m[4] != "" {
		h.NewLines, _ = strconv.Atoi(m[4])
	}
	return h, nil
}

func isFileHeader(line string) bool {
	for _, p := range []string{"diff --git ", "--- ", "+++ ", "index ", "new file mode", "deleted file mode", "similarity index", "rename from", "rename to"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// NewSideLines returns the context and added lines of hunks with their
// line numbers in the new file.
func NewSideLines(hunks []Hunk) []Line {
	var out []Line
	for _, h := range hunks {
		n := h.NewStart
		for _, l := range h.Lines {
			switch l[0] {
			case '+':
				out = append(out, Line{Number: n, Text: l[1:], Added: true})
				n++
			case ' ':
				out = append(out, Line{Number: n, Text: l[1:]})
				n++
			}
		}
	}
	return out
}

// ValidLines extracts all line numbers that can receive a comment: the lines
// present on the new side of the diff. A malformed patch has none.
func ValidLines(patch string, logger *slog.Logger) map[int]struct{} {
	valid := make(map[int]struct{})
	hunks, err := ParseHunks(patch)
	if err != nil && logger != nil {
		logger.Warn("patch could not be fully parsed", "error", err)
	}
	for _, l := range NewSideLines(hunks) {
		valid[l.Number] = struct{}{}
	}
	return valid
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
