// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/llm"
	"github.com/sevigo/precedent/internal/retry"
)

// Backend is the raw embedding provider. langchaingo's embeddings.Embedder
// satisfies it.
//
//go:generate mockgen -destination=../../mocks/mock_embedding_backend.go -package=mocks . Backend
type Backend interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Service embeds batches of text with retries, timeouts and dimension checks.
type Service interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension is the fixed vector size D.
	Dimension() int
}

type service struct {
	backend   Backend
	provider  string
	model     string
	dimension int
	batchSize int
	timeout   time.Duration
	policy    retry.Policy
	logger    *slog.Logger
}

// NewService wraps backend with the configured batching, timeout and retry policy.
func NewService(backend Backend, cfg config.EmbeddingConfig, timeout time.Duration, policy retry.Policy, logger *slog.Logger) Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &service{
		backend:   backend,
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		timeout:   timeout,
		policy:    policy,
		logger:    logger,
	}
}

func (s *service) Dimension() int {
	return s.dimension
}

func (s *service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for i, batch := range embeddings.BatchTexts(texts, s.batchSize) {
		vecs, err := retry.Do(ctx, s.policy, "embed", func(ctx context.Context) ([][]float32, error) {
			return s.embedBatch(ctx, batch)
		})
		if err != nil {
			if core.KindOf(err) == core.KindTransientProvider {
				return nil, core.NewError(core.KindTransientProvider, "embed", fmt.Errorf("%w: batch %d: %w", core.ErrEmbeddingUnavailable, i, err))
			}
			return nil, err
		}
		vectors = append(vectors, vecs...)
	}

	s.logger.Debug("embedded texts", "count", len(texts), "model", s.model)
	return vectors, nil
}

func (s *service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vecs, err := s.backend.EmbedDocuments(callCtx, batch)
	if err != nil {
		return nil, llm.ClassifyProviderError(s.provider, "embed", err)
	}
	if len(vecs) != len(batch) {
		return nil, core.NewError(core.KindFatalProvider, "embed",
			fmt.Errorf("%w: got %d vectors for %d texts", core.ErrProviderRejected, len(vecs), len(batch)))
	}
	for i, v := range vecs {
		if len(v) != s.dimension {
			return nil, core.NewError(core.KindFatalProvider, "embed",
				fmt.Errorf("%w: vector %d has %d dimensions, want %d", core.ErrDimensionMismatch, i, len(v), s.dimension))
		}
	}
	return vecs, nil
}

// CodeChangeText builds the text embedded for a code change under review.
func CodeChangeText(diff, surrounding string) string {
	if surrounding == "" {
		return diff
	}
	return fmt.Sprintf("Context: %s\n\nCode:\n%s", surrounding, diff)
}
