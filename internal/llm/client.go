package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/retry"
)

// Notes attached to a degraded outcome.
const (
	NoteUnparseable          = "The model's response could not be parsed, so no suggestions were produced for part of this change."
	NoteGenerationUnavailable = "The review model was unavailable, so no suggestions were produced for part of this change."
)

// maxEchoedOutput caps how much of a rejected answer is quoted back to the
// model in the corrective prompt.
const maxEchoedOutput = 2000

var suggestionNamespace = uuid.MustParse("6f1c2b9e-4d1a-5c3e-9b7f-2a8d0e4c6b13")

// Target identifies the pull request suggestions belong to.
type Target struct {
	Repository string
	PRNumber   int
}

// Outcome is the result of reviewing one prompt.
type Outcome struct {
	Suggestions []core.Suggestion
	Summary     string
	Degraded    bool
	Note        string
	TokensUsed  int
	// Calls counts backend invocations, retries included.
	Calls int
}

// Client sends prompts to a Generator and turns the answers into validated
// suggestions. It owns retries, timeouts, error classification and the single
// corrective retry on unparseable output.
type Client struct {
	gen      Generator
	prompts  *PromptManager
	provider ModelProvider
	params   Params
	timeout  time.Duration
	policy   retry.Policy
	logger   *slog.Logger
}

func NewClient(gen Generator, prompts *PromptManager, cfg config.LLMConfig, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *Client {
	return &Client{
		gen:      gen,
		prompts:  prompts,
		provider: ModelProvider(gen.Provider()),
		params: Params{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    true,
		},
		timeout: timeout,
		policy:  policy,
		logger:  logger,
	}
}

// Provider is the prompt provider key matching the generator.
func (c *Client) Provider() ModelProvider {
	return c.provider
}

// Model is the configured model name.
func (c *Client) Model() string {
	return c.params.Model
}

// Generate runs one prompt through the retry policy. Every attempt has its
// own timeout. Errors are classified.
func (c *Client) Generate(ctx context.Context, prompt string) (*Generation, error) {
	var calls int
	return c.generate(ctx, prompt, &calls)
}

func (c *Client) generate(ctx context.Context, prompt string, calls *int) (*Generation, error) {
	return retry.Do(ctx, c.policy, "generate", func(ctx context.Context) (*Generation, error) {
		*calls++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		gen, err := c.gen.Generate(callCtx, prompt, c.params)
		if err == nil {
			return gen, nil
		}
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, core.NewError(core.KindTransientProvider, "generate",
				fmt.Errorf("%w: no response within %s: %w", core.ErrProviderTimeout, c.timeout, err))
		}
		return nil, ClassifyProviderError(c.gen.Provider(), "generate", err)
	})
}

type correctiveData struct {
	Original string
	Previous string
	Problem  string
}

// Draft is a model's first answer to a prompt, not yet parsed.
type Draft struct {
	prompt  *Prompt
	text    string
	outcome *Outcome
}

// Degraded reports whether generation already gave up on this prompt.
func (d *Draft) Degraded() bool {
	return d.outcome.Degraded
}

// Draft runs the first generation for an assembled prompt. A provider that
// stays unavailable yields a degraded draft; fatal provider errors and
// cancellation are returned.
func (c *Client) Draft(ctx context.Context, prompt *Prompt) (*Draft, error) {
	out := &Outcome{Suggestions: []core.Suggestion{}}

	first, err := c.generate(ctx, prompt.Text, &out.Calls)
	if err != nil {
		out, err = c.degrade(ctx, out, err)
		if err != nil {
			return nil, err
		}
		return &Draft{prompt: prompt, outcome: out}, nil
	}
	out.TokensUsed += first.TokensUsed
	return &Draft{prompt: prompt, text: first.Text, outcome: out}, nil
}

// Parse turns a draft into suggestions. Unparseable output gets exactly one
// corrective retry with the same context; if that fails too, or the provider
// stays unavailable, the outcome is degraded instead of an error.
func (c *Client) Parse(ctx context.Context, target Target, d *Draft) (*Outcome, error) {
	out := d.outcome
	if out.Degraded {
		return out, nil
	}

	var failed Failed
	switch res := ParseReview(d.text).(type) {
	case Parsed:
		return c.finish(out, target, d.prompt, res), nil
	case Failed:
		failed = res
	}

	c.logger.Warn("model output did not match schema, retrying with correction",
		"error", failed.Err,
		"output_chars", len(failed.Raw),
	)
	corrective, err := c.prompts.Render(CorrectivePrompt, c.provider, correctiveData{
		Original: d.prompt.Text,
		Previous: truncate(failed.Raw, maxEchoedOutput),
		Problem:  failed.Err.Error(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render corrective prompt: %w", err)
	}

	second, err := c.generate(ctx, corrective, &out.Calls)
	if err != nil {
		return c.degrade(ctx, out, err)
	}
	out.TokensUsed += second.TokensUsed

	switch res := ParseReview(second.Text).(type) {
	case Parsed:
		return c.finish(out, target, d.prompt, res), nil
	case Failed:
		c.logger.Warn("corrective retry did not match schema, returning no suggestions", "error", res.Err)
		out.Degraded = true
		out.Note = NoteUnparseable
	}
	return out, nil
}

func (c *Client) degrade(ctx context.Context, out *Outcome, err error) (*Outcome, error) {
	if core.KindOf(err) == core.KindFatalProvider {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, core.NewError(core.KindTransientProvider, "review", ctxErr)
	}
	c.logger.Warn("generation unavailable, returning no suggestions", "error", err, "calls", out.Calls)
	out.Degraded = true
	out.Note = NoteGenerationUnavailable
	return out, nil
}

func (c *Client) finish(out *Outcome, target Target, prompt *Prompt, parsed Parsed) *Outcome {
	out.Summary = parsed.Summary
	for _, s := range parsed.Suggestions {
		s.Repository = target.Repository
		s.PRNumber = target.PRNumber
		s.Provenance = slices.Clone(prompt.RecordIDs)
		if s.Provenance == nil {
			s.Provenance = []string{}
		}
		s.ID = suggestionID(s)
		out.Suggestions = append(out.Suggestions, s)
	}
	return out
}

// suggestionID is stable for identical suggestions on the same PR.
func suggestionID(s core.Suggestion) string {
	key := s.Repository + "\x00" + strconv.Itoa(s.PRNumber) + "\x00" + s.FilePath + "\x00" +
		strconv.Itoa(s.LineNumber) + "\x00" + string(s.Category) + "\x00" + string(s.Severity) + "\x00" + s.Comment
	return uuid.NewSHA1(suggestionNamespace, []byte(key)).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
