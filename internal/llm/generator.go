package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"
	"github.com/sevigo/goframe/schema"

	"github.com/sevigo/precedent/internal/config"
)

const systemPrompt = "You are an expert code reviewer. Always respond with valid JSON."

// Params are the recognized generation options.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Generation is the raw text a backend produced.
type Generation struct {
	Text       string
	Model      string
	TokensUsed int
}

// Generator is one generative-text backend. Errors are raw provider errors;
// classification happens in the Client.
//
//go:generate mockgen -destination=../../mocks/mock_generator.go -package=mocks . Generator
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (*Generation, error)
	// Provider names the backend for error mapping and prompt selection.
	Provider() string
}

// NewGenerator creates the backend selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (Generator, error) {
	logger.Info("creating generator", "provider", cfg.Provider, "model", cfg.Model)

	switch cfg.Provider {
	case config.ProviderStub:
		return NewStubGenerator(), nil
	case config.ProviderOllama:
		// Retries are owned by the Client's policy.
		model, err := ollama.New(
			ollama.WithServerURL(cfg.OllamaHost),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
			ollama.WithLogger(logger),
			ollama.WithRetryAttempts(0),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama llm: %w", err)
		}
		return NewModelGenerator(model, cfg.Provider), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		model, err := gemini.New(ctx,
			gemini.WithModel(cfg.Model),
			gemini.WithAPIKey(cfg.GeminiAPIKey),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini llm: %w", err)
		}
		return NewModelGenerator(model, cfg.Provider), nil
	case config.ProviderOpenAI:
		return newOpenAIGenerator(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// modelGenerator adapts a goframe model.
type modelGenerator struct {
	model    llms.Model
	provider string
}

// NewModelGenerator wraps a goframe model. provider selects the error mapper.
func NewModelGenerator(model llms.Model, provider string) Generator {
	return &modelGenerator{model: model, provider: provider}
}

func (g *modelGenerator) Provider() string {
	return g.provider
}

func (g *modelGenerator) Generate(ctx context.Context, prompt string, params Params) (*Generation, error) {
	messages := []schema.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
		llms.WithJSONMode(params.JSONMode),
	}
	if params.Model != "" {
		opts = append(opts, llms.WithModel(params.Model))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}

	resp, err := g.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}

	choice := resp.Choices[0]
	return &Generation{
		Text:       choice.Content,
		Model:      params.Model,
		TokensUsed: tokensUsed(choice.GenerationInfo, prompt, choice.Content),
	}, nil
}

// tokensUsed prefers the usage a provider reported and estimates otherwise.
func tokensUsed(info map[string]any, prompt, completion string) int {
	if n := reportedTokens(info); n > 0 {
		return n
	}
	return EstimateTokens(prompt) + EstimateTokens(completion)
}

// reportedTokens reads total token usage from provider generation info.
func reportedTokens(info map[string]any) int {
	for _, key := range []string{"TotalTokens", "total_tokens"} {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
