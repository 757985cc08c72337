package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/philippgille/chromem-go"

	"github.com/sevigo/precedent/internal/core"
)

var errNoEmbeddingFunc = errors.New("records must be embedded before they reach the vector store")

// chromemVectorStore implements VectorStore on an embedded chromem-go database.
// It is in-memory unless a persistence path is given.
type chromemVectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	logger     *slog.Logger
}

// NewChromemVectorStore opens (or creates) collectionName. An empty path keeps
// everything in memory.
func NewChromemVectorStore(path, collectionName string, dimension int, logger *slog.Logger) (VectorStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database at %s: %w", path, err)
		}
	}

	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}
	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{"dimension": fmt.Sprint(dimension)}, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}

	logger.Info("chromem vector store ready", "collection", collectionName, "persistent", path != "", "documents", collection.Count())
	return &chromemVectorStore{
		db:         db,
		collection: collection,
		dimension:  dimension,
		logger:     logger,
	}, nil
}

func (c *chromemVectorStore) Upsert(ctx context.Context, records []core.ReviewRecord) error {
	if err := checkUpsert(records, c.dimension); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	// A batch is applied whole once started, so a late cancellation cannot
	// leave half of it behind.
	writeCtx := context.WithoutCancel(ctx)
	for i := range records {
		r := &records[i]
		doc := chromem.Document{
			ID:        r.ID,
			Metadata:  recordMetadata(r),
			Embedding: append([]float32(nil), r.Embedding...),
			Content:   r.Document(),
		}
		if err := c.collection.AddDocument(writeCtx, doc); err != nil {
			return fmt.Errorf("failed to add document %s to chromem: %w", r.ID, err)
		}
	}
	return nil
}

func (c *chromemVectorStore) Query(ctx context.Context, vector []float32, n int, filter Filter) ([]core.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// chromem rejects n larger than the collection.
	if count := c.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, vector, n, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromem: %w", err)
	}

	out := make([]core.ScoredRecord, 0, len(results))
	for _, res := range results {
		rec, err := recordFromMetadata(res.ID, res.Metadata)
		if err != nil {
			return nil, err
		}
		rec.Embedding = res.Embedding
		out = append(out, core.ScoredRecord{Record: rec, Similarity: float64(res.Similarity)})
	}
	return out, nil
}

func (c *chromemVectorStore) Count(_ context.Context) (int, error) {
	return c.collection.Count(), nil
}

func (c *chromemVectorStore) Close() error {
	return nil
}
