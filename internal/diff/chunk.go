package diff

import (
	"strings"

	"github.com/sevigo/precedent/internal/core"
)

// Chunk is a contiguous slice of one file's diff small enough to review in a
// single prompt.
type Chunk struct {
	FilePath string
	Language core.CodeLanguage
	Patch    string
	Hunks    []Hunk
}

// SplitFile parses file.Patch and groups its hunks into chunks of at most
// maxChars characters of patch text. A hunk larger than maxChars is cut at
// line boundaries into smaller hunks with recomputed headers. A malformed
// patch is a validation error.
func SplitFile(file core.FileDiff, maxChars int) ([]Chunk, error) {
	hunks, err := ParseHunks(file.Patch)
	if err != nil {
		return nil, core.NewError(core.KindValidation, "parse diff", err)
	}

	var pieces []Hunk
	for _, h := range hunks {
		pieces = append(pieces, splitHunk(h, maxChars)...)
	}

	var chunks []Chunk
	var group []Hunk
	size := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		chunks = append(chunks, newChunk(file, group))
		group = nil
		size = 0
	}

	for _, h := range pieces {
		n := len(h.String()) + 1
		if size+n > maxChars {
			flush()
		}
		group = append(group, h)
		size += n
	}
	flush()
	return chunks, nil
}

func newChunk(file core.FileDiff, hunks []Hunk) Chunk {
	parts := make([]string, 0, len(hunks))
	for _, h := range hunks {
		parts = append(parts, h.String())
	}
	return Chunk{
		FilePath: file.FilePath,
		Language: file.Language,
		Patch:    strings.Join(parts, "\n"),
		Hunks:    hunks,
	}
}

// splitHunk cuts h into consecutive hunks whose rendered size stays within
// maxChars where possible. A single line longer than maxChars is kept whole.
func splitHunk(h Hunk, maxChars int) []Hunk {
	if len(h.String()) <= maxChars {
		return []Hunk{h}
	}

	var out []Hunk
	oldPos, newPos := h.OldStart, h.NewStart
	cur := Hunk{OldStart: oldPos, NewStart: newPos, Section: h.Section}
	size := len(cur.Header())

	for _, l := range h.Lines {
		if len(cur.Lines) > 0 && size+len(l)+1 > maxChars {
			out = append(out, cur)
			cur = Hunk{OldStart: oldPos, NewStart: newPos, Section: h.Section}
			size = len(cur.Header())
		}
		cur.Lines = append(cur.Lines, l)
		size += len(l) + 1

		switch l[0] {
		case ' ':
			cur.OldLines++
			cur.NewLines++
			oldPos++
			newPos++
		case '-':
			cur.OldLines++
			oldPos++
		case '+':
			cur.NewLines++
			newPos++
		}
	}
	if len(cur.Lines) > 0 {
		out = append(out, cur)
	}
	return out
}
