package llm

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/sevigo/precedent/internal/core"
)

// CodeUnit is one chunk of a diff that gets its own prompt.
type CodeUnit struct {
	FilePath string
	Language core.CodeLanguage
	Patch    string
}

// Prompt is an assembled prompt plus the ids of the records it cites.
type Prompt struct {
	Text      string
	RecordIDs []string
}

// Assembler builds bounded review prompts from a code unit and its
// retrieved precedent.
type Assembler struct {
	prompts     *PromptManager
	provider    ModelProvider
	topK        int
	budgetChars int
	guide       *core.ReviewGuide
}

// NewAssembler returns an assembler that never exceeds budgetChars and never
// cites more than topK records. guide may be nil.
func NewAssembler(prompts *PromptManager, provider ModelProvider, topK, budgetChars int, guide *core.ReviewGuide) *Assembler {
	return &Assembler{
		prompts:     prompts,
		provider:    provider,
		topK:        topK,
		budgetChars: budgetChars,
		guide:       guide,
	}
}

// BudgetFromTokens converts a token budget into the character budget the
// assembler works with.
func BudgetFromTokens(tokens int) int {
	return tokens * charsPerToken
}

type contextRecord struct {
	FilePath    string
	Category    string
	Severity    string
	WasResolved bool
	Similarity  string
	Snippet     string
	Comment     string
}

type reviewPromptData struct {
	Records            []contextRecord
	StyleGuide         string
	CustomInstructions []string
	FilePath           string
	Language           string
	Patch              string
}

// Assemble renders the review prompt for unit. Records are ordered by
// similarity and the lowest ranked are dropped whole until the prompt fits.
// A code unit that does not fit even without context is a validation error.
func (a *Assembler) Assemble(unit CodeUnit, records []core.ScoredRecord) (*Prompt, error) {
	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, func(x, y core.ScoredRecord) int {
		if c := cmp.Compare(y.Similarity, x.Similarity); c != 0 {
			return c
		}
		if c := y.Record.IngestedAt.Compare(x.Record.IngestedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.Record.ID, y.Record.ID)
	})
	if len(ranked) > a.topK {
		ranked = ranked[:a.topK]
	}

	data := reviewPromptData{
		FilePath: unit.FilePath,
		Language: string(unit.Language),
		Patch:    unit.Patch,
	}
	if a.guide != nil {
		data.StyleGuide = a.guide.StyleGuide
		data.CustomInstructions = a.guide.CustomInstructions
	}

	for n := len(ranked); n >= 0; n-- {
		data.Records = toContextRecords(ranked[:n])
		text, err := a.prompts.Render(CodeReviewPrompt, a.provider, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render review prompt: %w", err)
		}
		if utf8.RuneCountInString(text) <= a.budgetChars {
			ids := make([]string, 0, n)
			for _, r := range ranked[:n] {
				ids = append(ids, r.Record.ID)
			}
			return &Prompt{Text: text, RecordIDs: ids}, nil
		}
	}

	return nil, core.NewError(core.KindValidation, "assemble prompt",
		fmt.Errorf("code unit %s does not fit the prompt budget of %d characters", unit.FilePath, a.budgetChars))
}

// CodeBudget is the number of characters left for a code unit and its
// context once the fixed parts of the prompt are rendered.
func (a *Assembler) CodeBudget() (int, error) {
	data := reviewPromptData{}
	if a.guide != nil {
		data.StyleGuide = a.guide.StyleGuide
		data.CustomInstructions = a.guide.CustomInstructions
	}
	text, err := a.prompts.Render(CodeReviewPrompt, a.provider, data)
	if err != nil {
		return 0, fmt.Errorf("failed to render review prompt: %w", err)
	}
	return a.budgetChars - utf8.RuneCountInString(text), nil
}

func toContextRecords(records []core.ScoredRecord) []contextRecord {
	out := make([]contextRecord, 0, len(records))
	for _, r := range records {
		out = append(out, contextRecord{
			FilePath:    r.Record.FilePath,
			Category:    orUnknown(string(r.Record.Category)),
			Severity:    orUnknown(string(r.Record.Severity)),
			WasResolved: r.Record.WasResolved,
			Similarity:  strconv.FormatFloat(r.Similarity, 'f', 2, 64),
			Snippet:     r.Record.DiffSnippet,
			Comment:     r.Record.Comment,
		})
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
