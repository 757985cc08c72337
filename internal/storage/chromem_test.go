package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/precedent/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testRecord(id string, vec []float32) core.ReviewRecord {
	return core.ReviewRecord{
		ID:          id,
		Repository:  "acme/api",
		PRNumber:    42,
		FilePath:    "internal/user/service.go",
		StartLine:   10,
		EndLine:     14,
		DiffSnippet: "+ name := user.Name",
		Comment:     "missing null check on user",
		Category:    core.CategoryBug,
		Severity:    core.SeverityError,
		Language:    core.LanguageGo,
		Reviewer:    "octocat",
		WasResolved: true,
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		IngestedAt:  time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		Embedding:   vec,
	}
}

func TestChromemVectorStore_ReadYourWrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemVectorStore("", "reviews", 4, testLogger())
	require.NoError(t, err)
	defer store.Close()

	rec := testRecord("r1", []float32{0.2, 0.4, 0.1, 0.9})
	require.NoError(t, store.Upsert(ctx, []core.ReviewRecord{rec}))

	got, err := store.Query(ctx, rec.Embedding, 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].Record.ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-5)
	assert.Equal(t, rec.Comment, got[0].Record.Comment)
	assert.Equal(t, rec.IngestedAt, got[0].Record.IngestedAt)
	assert.Equal(t, rec.CreatedAt, got[0].Record.CreatedAt)
	assert.Equal(t, 10, got[0].Record.StartLine)
	assert.True(t, got[0].Record.WasResolved)
	assert.Len(t, got[0].Record.Embedding, 4)
}

func TestChromemVectorStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemVectorStore("", "reviews", 2, testLogger())
	require.NoError(t, err)

	first := testRecord("same", []float32{1, 0})
	second := testRecord("same", []float32{0, 1})
	second.Comment = "updated comment"

	require.NoError(t, store.Upsert(ctx, []core.ReviewRecord{first}))
	require.NoError(t, store.Upsert(ctx, []core.ReviewRecord{second}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Query(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "updated comment", got[0].Record.Comment)
}

func TestChromemVectorStore_Validation(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemVectorStore("", "reviews", 3, testLogger())
	require.NoError(t, err)

	err = store.Upsert(ctx, []core.ReviewRecord{testRecord("short", []float32{1, 0})})
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	err = store.Upsert(ctx, []core.ReviewRecord{testRecord("", []float32{1, 0, 0})})
	require.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChromemVectorStore_EmptyAndFiltered(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemVectorStore("", "reviews", 2, testLogger())
	require.NoError(t, err)

	got, err := store.Query(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	bug := testRecord("bug", []float32{1, 0})
	style := testRecord("style", []float32{1, 0.1})
	style.Category = core.CategoryStyle
	require.NoError(t, store.Upsert(ctx, []core.ReviewRecord{bug, style}))

	got, err = store.Query(ctx, []float32{1, 0}, 10, Filter{MetaCategory: string(core.CategoryStyle)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "style", got[0].Record.ID)
}

// cancelAfterCtx reports cancellation once Err has been consulted a fixed
// number of times.
type cancelAfterCtx struct {
	context.Context
	mu    sync.Mutex
	calls int
	after int
}

func (c *cancelAfterCtx) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls > c.after {
		return context.Canceled
	}
	return nil
}

func TestChromemVectorStore_UpsertIsAllOrNothing(t *testing.T) {
	testCases := []struct {
		name      string
		after     int
		wantErr   bool
		wantCount int
	}{
		{name: "cancelled mid-batch keeps the whole batch", after: 2, wantCount: 5},
		{name: "cancelled before start writes nothing", after: 0, wantErr: true, wantCount: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewChromemVectorStore("", "reviews", 2, testLogger())
			require.NoError(t, err)

			var records []core.ReviewRecord
			for i := range 5 {
				records = append(records, testRecord(fmt.Sprintf("r%d", i), []float32{1, float32(i)}))
			}

			ctx := &cancelAfterCtx{Context: context.Background(), after: tc.after}
			err = store.Upsert(ctx, records)
			if tc.wantErr {
				require.ErrorIs(t, err, context.Canceled)
			} else {
				require.NoError(t, err)
			}

			n, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantCount, n)
		})
	}
}

func TestChromemVectorStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewChromemVectorStore(dir, "reviews", 2, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []core.ReviewRecord{testRecord("p1", []float32{0.6, 0.8})}))

	reopened, err := NewChromemVectorStore(dir, "reviews", 2, testLogger())
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQdrantPayloadRoundTrip(t *testing.T) {
	rec := testRecord("review-17", []float32{0.1, 0.2, 0.3})
	point := toPoint(&rec)

	assert.Equal(t, pointID("review-17"), point.GetId().GetUuid())
	assert.Equal(t, pointID("review-17"), pointID("review-17"), "point ids must be stable")
	assert.NotEqual(t, pointID("review-17"), pointID("review-18"))

	scored := &qdrant.ScoredPoint{
		Id:      point.GetId(),
		Payload: point.GetPayload(),
		Score:   0.87,
		Vectors: &qdrant.VectorsOutput{
			VectorsOptions: &qdrant.VectorsOutput_Vector{
				Vector: &qdrant.VectorOutput{
					Vector: &qdrant.VectorOutput_Dense{Dense: &qdrant.DenseVector{Data: rec.Embedding}},
				},
			},
		},
	}

	got, err := fromPoint(scored)
	require.NoError(t, err)
	assert.Equal(t, rec, got.Record)
	assert.InDelta(t, 0.87, got.Similarity, 1e-6)
}

func TestToFilter(t *testing.T) {
	assert.Nil(t, toFilter(nil))

	f := toFilter(Filter{MetaLanguage: "go", MetaCategory: "bug"})
	require.Len(t, f.GetMust(), 2)
	assert.Equal(t, MetaCategory, f.GetMust()[0].GetField().GetKey())
	assert.Equal(t, "bug", f.GetMust()[0].GetField().GetMatch().GetKeyword())
	assert.Equal(t, MetaLanguage, f.GetMust()[1].GetField().GetKey())
}
