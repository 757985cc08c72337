package llm_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goframefake "github.com/sevigo/goframe/llms/fake"
	"github.com/tmc/langchaingo/llms/fake"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/llm"
	"github.com/sevigo/precedent/internal/retry"
	"github.com/sevigo/precedent/mocks"
)

const validOutput = `{"suggestions":[{"file_path":"svc/user.go","line_number":2,"category":"bug","severity":"warning","confidence":0.8,"suggestion":"u may be nil here."}],"summary":"One possible nil dereference."}`

var target = llm.Target{Repository: "acme/api", PRNumber: 9}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newClient(t *testing.T, gen llm.Generator) *llm.Client {
	t.Helper()
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	cfg := config.LLMConfig{Provider: gen.Provider(), Model: "test-model", Temperature: 0, MaxTokens: 500}
	policy := retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
	return llm.NewClient(gen, pm, cfg, time.Second, policy, testLogger())
}

func newMockGenerator(t *testing.T) *mocks.MockGenerator {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Provider().Return("openai").AnyTimes()
	return gen
}

// review drafts and parses one prompt the way the pipeline's two stages do.
func review(ctx context.Context, c *llm.Client, prompt *llm.Prompt) (*llm.Outcome, error) {
	d, err := c.Draft(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return c.Parse(ctx, target, d)
}

func testPrompt() *llm.Prompt {
	return &llm.Prompt{Text: "Target file: svc/user.go\nreview this", RecordIDs: []string{"r1", "r2"}}
}

func TestClient_Review_Success(t *testing.T) {
	gen := newMockGenerator(t)
	gen.EXPECT().Generate(gomock.Any(), testPrompt().Text, llm.Params{Model: "test-model", MaxTokens: 500, JSONMode: true}).
		Return(&llm.Generation{Text: validOutput, TokensUsed: 120}, nil).Times(1)

	out, err := review(context.Background(), newClient(t, gen), testPrompt())
	require.NoError(t, err)
	assert.False(t, out.Degraded)
	assert.Equal(t, 1, out.Calls)
	assert.Equal(t, 120, out.TokensUsed)
	assert.Equal(t, "One possible nil dereference.", out.Summary)
	require.Len(t, out.Suggestions, 1)

	s := out.Suggestions[0]
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "acme/api", s.Repository)
	assert.Equal(t, 9, s.PRNumber)
	assert.Equal(t, []string{"r1", "r2"}, s.Provenance)
	assert.Equal(t, 2, s.LineNumber)
}

func TestClient_Review_CorrectiveRetry(t *testing.T) {
	t.Run("non-schema text twice degrades after exactly one corrective retry", func(t *testing.T) {
		gen := newMockGenerator(t)
		gomock.InOrder(
			gen.EXPECT().Generate(gomock.Any(), testPrompt().Text, gomock.Any()).
				Return(&llm.Generation{Text: "Sure! The code looks fine."}, nil),
			gen.EXPECT().Generate(gomock.Any(), gomock.Not(testPrompt().Text), gomock.Any()).
				DoAndReturn(func(_ context.Context, prompt string, _ llm.Params) (*llm.Generation, error) {
					assert.Contains(t, prompt, testPrompt().Text, "corrective prompt reuses the original context")
					assert.Contains(t, prompt, "Sure! The code looks fine.")
					return &llm.Generation{Text: "Still not JSON."}, nil
				}),
		)

		out, err := review(context.Background(), newClient(t, gen), testPrompt())
		require.NoError(t, err)
		assert.Equal(t, 2, out.Calls)
		assert.True(t, out.Degraded)
		assert.Equal(t, llm.NoteUnparseable, out.Note)
		assert.Empty(t, out.Suggestions)
	})

	t.Run("corrected output is accepted", func(t *testing.T) {
		gen := newMockGenerator(t)
		gomock.InOrder(
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&llm.Generation{Text: `{"suggestions":[{"file_path":"a.go"}]}`}, nil),
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&llm.Generation{Text: validOutput}, nil),
		)

		out, err := review(context.Background(), newClient(t, gen), testPrompt())
		require.NoError(t, err)
		assert.False(t, out.Degraded)
		assert.Len(t, out.Suggestions, 1)
	})
}

func TestClient_DraftThenParse(t *testing.T) {
	t.Run("parsing owns the corrective call", func(t *testing.T) {
		gen := newMockGenerator(t)
		gen.EXPECT().Generate(gomock.Any(), testPrompt().Text, gomock.Any()).
			Return(&llm.Generation{Text: "no json here", TokensUsed: 10}, nil).Times(1)
		c := newClient(t, gen)

		d, err := c.Draft(context.Background(), testPrompt())
		require.NoError(t, err)
		assert.False(t, d.Degraded())

		gen.EXPECT().Generate(gomock.Any(), gomock.Not(testPrompt().Text), gomock.Any()).
			Return(&llm.Generation{Text: validOutput, TokensUsed: 30}, nil).Times(1)
		out, err := c.Parse(context.Background(), target, d)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Calls)
		assert.Equal(t, 40, out.TokensUsed)
		assert.Len(t, out.Suggestions, 1)
	})

	t.Run("quota on the corrective call is fatal", func(t *testing.T) {
		gen := newMockGenerator(t)
		gomock.InOrder(
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&llm.Generation{Text: "no json here"}, nil),
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, errors.New("error, status code: 429, message: You exceeded your current quota")),
		)
		c := newClient(t, gen)

		d, err := c.Draft(context.Background(), testPrompt())
		require.NoError(t, err)
		_, err = c.Parse(context.Background(), target, d)
		require.ErrorIs(t, err, core.ErrFatalProvider)
	})

	t.Run("degraded draft parses to its empty outcome", func(t *testing.T) {
		gen := newMockGenerator(t)
		gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, context.DeadlineExceeded).Times(3)
		c := newClient(t, gen)

		d, err := c.Draft(context.Background(), testPrompt())
		require.NoError(t, err)
		require.True(t, d.Degraded())

		out, err := c.Parse(context.Background(), target, d)
		require.NoError(t, err)
		assert.Equal(t, llm.NoteGenerationUnavailable, out.Note)
		assert.Equal(t, 3, out.Calls)
		assert.Empty(t, out.Suggestions)
	})
}

func TestClient_Review_ProviderErrors(t *testing.T) {
	testCases := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
		wantCause error
		degraded  bool
	}{
		{
			name:      "quota exceeded fails fast",
			errs:      []error{errors.New("error, status code: 429, message: You exceeded your current quota")},
			wantCalls: 1,
			wantErr:   core.ErrFatalProvider,
			wantCause: core.ErrProviderQuotaExceeded,
		},
		{
			name:      "auth error is fatal",
			errs:      []error{errors.New("status code: 401, message: Incorrect API key provided")},
			wantCalls: 1,
			wantErr:   core.ErrFatalProvider,
			wantCause: core.ErrProviderAuth,
		},
		{
			name:      "rate limit recovers",
			errs:      []error{errors.New("status code: 429, rate limit reached"), nil},
			wantCalls: 2,
		},
		{
			name: "timeouts exhaust retries and degrade",
			errs: []error{
				context.DeadlineExceeded,
				context.DeadlineExceeded,
				context.DeadlineExceeded,
			},
			wantCalls: 3,
			degraded:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newMockGenerator(t)
			var calls int
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(context.Context, string, llm.Params) (*llm.Generation, error) {
					err := tc.errs[calls]
					calls++
					if err != nil {
						return nil, err
					}
					return &llm.Generation{Text: validOutput}, nil
				},
			).Times(tc.wantCalls)

			out, err := review(context.Background(), newClient(t, gen), testPrompt())
			assert.Equal(t, tc.wantCalls, calls)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.ErrorIs(t, err, tc.wantCause)
				assert.Nil(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.degraded, out.Degraded)
			if tc.degraded {
				assert.Equal(t, llm.NoteGenerationUnavailable, out.Note)
				assert.Empty(t, out.Suggestions)
			}
		})
	}
}

func TestClient_Review_Cancelled(t *testing.T) {
	gen := newMockGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ llm.Params) (*llm.Generation, error) {
			cancel()
			return nil, ctx.Err()
		},
	).Times(1)

	out, err := review(ctx, newClient(t, gen), testPrompt())
	assert.Nil(t, out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.KindTransientProvider, core.KindOf(err))
}

func TestClient_Generate_Timeout(t *testing.T) {
	gen := newMockGenerator(t)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ llm.Params) (*llm.Generation, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	).Times(1)

	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	client := llm.NewClient(gen, pm, config.LLMConfig{Model: "m"}, 10*time.Millisecond, retry.Policy{MaxAttempts: 1}, testLogger())

	_, err = client.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, core.ErrTransientProvider)
	require.ErrorIs(t, err, core.ErrProviderTimeout)
}

func TestStubGenerator_Deterministic(t *testing.T) {
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	assembler := llm.NewAssembler(pm, llm.DefaultProvider, 5, 20000, nil)
	prompt, err := assembler.Assemble(llm.CodeUnit{
		FilePath: "app/settings.py",
		Language: core.LanguagePython,
		Patch:    "@@ -1,2 +1,4 @@\n import os\n+password = \"hunter2\"\n+print(password)\n DEBUG = False",
	}, nil)
	require.NoError(t, err)

	client := newClient(t, llm.NewStubGenerator())
	first, err := review(context.Background(), client, prompt)
	require.NoError(t, err)
	require.Len(t, first.Suggestions, 2)
	assert.Equal(t, core.CategorySecurity, first.Suggestions[0].Category)
	assert.Equal(t, 2, first.Suggestions[0].LineNumber)
	assert.Equal(t, core.CategoryStyle, first.Suggestions[1].Category)
	assert.Equal(t, 3, first.Suggestions[1].LineNumber)

	for range 5 {
		again, err := review(context.Background(), client, prompt)
		require.NoError(t, err)
		assert.Equal(t, first.Suggestions, again.Suggestions)
	}
}

func TestLangchainGenerator_WithFakeModel(t *testing.T) {
	model := fake.NewFakeLLM([]string{"not json", validOutput})
	client := newClient(t, llm.NewLangchainGenerator(model, config.ProviderOpenAI))

	out, err := review(context.Background(), client, testPrompt())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Calls)
	assert.False(t, out.Degraded)
	require.Len(t, out.Suggestions, 1)
	assert.Positive(t, out.TokensUsed)
}

func TestModelGenerator_WithFakeModel(t *testing.T) {
	model := goframefake.NewFakeLLM([]string{"```json\n" + validOutput + "\n```"})
	gen := llm.NewModelGenerator(model, config.ProviderOllama)

	out, err := review(context.Background(), newClient(t, gen), testPrompt())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Calls)
	assert.Equal(t, 1, model.GetCallCount())
	require.Len(t, out.Suggestions, 1)
	assert.Equal(t, "svc/user.go", out.Suggestions[0].FilePath)
	assert.Positive(t, out.TokensUsed)
}

func TestModelGenerator_EmptyResponses(t *testing.T) {
	gen := llm.NewModelGenerator(goframefake.NewFakeLLM(nil), config.ProviderGemini)

	_, err := gen.Generate(context.Background(), "prompt", llm.Params{JSONMode: true})
	require.Error(t, err)
	assert.Equal(t, config.ProviderGemini, gen.Provider())
}
