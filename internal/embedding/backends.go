package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sevigo/precedent/internal/config"
)

// NewBackend creates the embedding backend selected by cfg.Provider.
// Hosted providers reuse the API keys of the generation configuration.
func NewBackend(ctx context.Context, cfg config.EmbeddingConfig, llmCfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (Backend, error) {
	logger.Info("creating embedding backend", "provider", cfg.Provider, "model", cfg.Model, "dimension", cfg.Dimension)

	var client embeddings.Embedder
	var err error

	switch cfg.Provider {
	case config.ProviderHash:
		return NewHashBackend(cfg.Dimension), nil
	case config.ProviderOpenAI:
		return newOpenAIBackend(cfg, llmCfg, httpClient)
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(llmCfg.OllamaHost),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
			ollama.WithLogger(logger),
			ollama.WithRetryAttempts(0),
		)
	case config.ProviderGemini:
		client, err = gemini.New(ctx,
			gemini.WithModel(cfg.Model),
			gemini.WithEmbeddingModel(cfg.Model),
			gemini.WithAPIKey(llmCfg.GeminiAPIKey),
			gemini.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder LLM: %w", err)
	}
	return NewModelBackend(client, cfg.BatchSize)
}

// NewModelBackend wraps a goframe embedder. Documents and queries share one
// vector space here, so the query/passage prefixes are disabled and diff
// newlines are kept.
func NewModelBackend(client embeddings.Embedder, batchSize int) (Backend, error) {
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithQueryPrefix(""),
		embeddings.WithDocumentPrefix(""),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newOpenAIBackend(cfg config.EmbeddingConfig, llmCfg config.LLMConfig, httpClient *http.Client) (Backend, error) {
	client, err := openai.New(
		openai.WithToken(llmCfg.OpenAIAPIKey),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder client: %w", err)
	}
	embedder, err := lcembeddings.NewEmbedder(client, lcembeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
