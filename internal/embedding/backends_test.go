package embedding

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/precedent/internal/config"
)

// recordingEmbedder captures what the goframe wrapper forwards.
type recordingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (r *recordingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (r *recordingEmbedder) EmbedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	return r.EmbedDocuments(ctx, texts)
}

func (r *recordingEmbedder) GetDimension(context.Context) (int, error) {
	return 2, nil
}

func TestModelBackend_ForwardsTextUnchanged(t *testing.T) {
	rec := &recordingEmbedder{}
	backend, err := NewModelBackend(rec, 2)
	require.NoError(t, err)

	svc := newTestService(backend, 2, 10)
	texts := []string{"+ if u == nil {\n+ return\n+ }", "second", "third"}
	vecs, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	var forwarded []string
	for _, b := range rec.batches {
		assert.LessOrEqual(t, len(b), 2)
		forwarded = append(forwarded, b...)
	}
	assert.Equal(t, texts, forwarded)
}

func TestNewBackend_Providers(t *testing.T) {
	ctx := context.Background()
	llmCfg := config.LLMConfig{OllamaHost: "http://localhost:11434"}

	hash, err := NewBackend(ctx, config.EmbeddingConfig{Provider: config.ProviderHash, Dimension: 32}, llmCfg, nil, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &HashBackend{}, hash)

	ollamaBackend, err := NewBackend(ctx, config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text", BatchSize: 8}, llmCfg, nil, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, ollamaBackend)

	_, err = NewBackend(ctx, config.EmbeddingConfig{Provider: "word2vec"}, llmCfg, nil, testLogger())
	require.Error(t, err)
}
