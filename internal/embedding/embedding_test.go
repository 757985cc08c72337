package embedding

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/retry"
	"github.com/sevigo/precedent/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func newTestService(backend Backend, dim, batch int) Service {
	cfg := config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "test", Dimension: dim, BatchSize: batch}
	return NewService(backend, cfg, time.Second, testPolicy(), testLogger())
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashBackend_Deterministic(t *testing.T) {
	svc := newTestService(NewHashBackend(128), 128, 2)
	ctx := context.Background()

	texts := []string{"missing null check on user", "missing null check on user", "rename variable for clarity"}
	first, err := svc.Embed(ctx, texts)
	require.NoError(t, err)
	second, err := svc.Embed(ctx, texts)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, first[0], first[1])
	assert.InDelta(t, 1.0, cosine(first[0], first[1]), 1e-6)
	assert.Less(t, cosine(first[0], first[2]), 0.9)
	for _, v := range first {
		assert.Len(t, v, 128)
	}
}

func TestService_EmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	vecs, err := newTestService(backend, 4, 10).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestService_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	backend.EXPECT().EmbedDocuments(gomock.Any(), []string{"a", "b"}).Return([][]float32{{1, 0}, {0, 1}}, nil)
	backend.EXPECT().EmbedDocuments(gomock.Any(), []string{"c"}).Return([][]float32{{1, 1}}, nil)

	vecs, err := newTestService(backend, 2, 2).Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}, {1, 1}}, vecs)
}

func TestService_RetriesThenUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	backend.EXPECT().EmbedDocuments(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("503 service unavailable")).Times(3)

	_, err := newTestService(backend, 2, 10).Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Equal(t, core.KindTransientProvider, core.KindOf(err))
}

func TestService_RecoversAfterTransientFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	gomock.InOrder(
		backend.EXPECT().EmbedDocuments(gomock.Any(), gomock.Any()).Return(nil, errors.New("429 too many requests")),
		backend.EXPECT().EmbedDocuments(gomock.Any(), gomock.Any()).Return([][]float32{{0.5, 0.5}}, nil),
	)

	vec, err := newTestService(backend, 2, 10).EmbedQuery(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestService_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		err     error
		wantIs  error
	}{
		{name: "auth is not retried", err: errors.New("401 unauthorized"), wantIs: core.ErrProviderAuth},
		{name: "dimension mismatch", vectors: [][]float32{{1, 2, 3}}, wantIs: core.ErrDimensionMismatch},
		{name: "count mismatch", vectors: [][]float32{}, wantIs: core.ErrProviderRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			backend := mocks.NewMockBackend(ctrl)
			backend.EXPECT().EmbedDocuments(gomock.Any(), gomock.Any()).Return(tt.vectors, tt.err).Times(1)

			_, err := newTestService(backend, 2, 10).Embed(context.Background(), []string{"a"})
			assert.ErrorIs(t, err, tt.wantIs)
			assert.ErrorIs(t, err, core.ErrFatalProvider)
		})
	}
}

func TestService_TimeoutIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	backend.EXPECT().EmbedDocuments(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ []string) ([][]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(3)

	cfg := config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "test", Dimension: 2, BatchSize: 10}
	svc := NewService(backend, cfg, 5*time.Millisecond, testPolicy(), testLogger())

	_, err := svc.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, core.ErrProviderTimeout)
}

func TestCodeChangeText(t *testing.T) {
	assert.Equal(t, "+x := 1", CodeChangeText("+x := 1", ""))
	assert.Equal(t, "Context: main.go\n\nCode:\n+x := 1", CodeChangeText("+x := 1", "main.go"))
}
