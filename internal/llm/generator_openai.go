package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sevigo/precedent/internal/config"
)

func newOpenAIGenerator(cfg config.LLMConfig, httpClient *http.Client) (Generator, error) {
	model, err := openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai llm: %w", err)
	}
	return NewLangchainGenerator(model, cfg.Provider), nil
}

// langchainGenerator adapts any langchaingo model. It serves the providers
// goframe has no client for.
type langchainGenerator struct {
	model    llms.Model
	provider string
}

// NewLangchainGenerator wraps model. provider selects the error mapper.
func NewLangchainGenerator(model llms.Model, provider string) Generator {
	return &langchainGenerator{model: model, provider: provider}
}

func (g *langchainGenerator) Provider() string {
	return g.provider
}

func (g *langchainGenerator) Generate(ctx context.Context, prompt string, params Params) (*Generation, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
	}
	if params.Model != "" {
		opts = append(opts, llms.WithModel(params.Model))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	if params.JSONMode {
		opts = append(opts, llms.WithJSONMode())
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
