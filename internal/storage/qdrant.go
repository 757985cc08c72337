package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
)

// qdrantVectorStore implements VectorStore using Qdrant as the backend.
type qdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *slog.Logger
}

// NewQdrantVectorStore connects to Qdrant and makes sure the collection exists
// with the configured dimension and cosine distance.
func NewQdrantVectorStore(ctx context.Context, cfg config.VectorStoreConfig, dimension int, logger *slog.Logger) (VectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.QdrantHost,
		Port:                   cfg.QdrantPort,
		APIKey:                 cfg.QdrantAPIKey,
		UseTLS:                 cfg.QdrantTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	q := &qdrantVectorStore{
		client:     client,
		collection: cfg.CollectionName,
		dimension:  dimension,
		logger:     logger,
	}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *qdrantVectorStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check qdrant collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	q.logger.Info("creating qdrant collection", "collection", q.collection, "dimension", q.dimension)
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection %s: %w", q.collection, err)
	}
	return nil
}

// pointID derives a stable UUID from the record ID so re-ingesting a record
// overwrites the same point.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}

func (q *qdrantVectorStore) Upsert(ctx context.Context, records []core.ReviewRecord) error {
	if err := checkUpsert(records, q.dimension); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i := range records {
		points = append(points, toPoint(&records[i]))
	}

	// A single request keeps the batch all-or-nothing on the client side.
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points to qdrant collection %s: %w", len(points), q.collection, err)
	}
	return nil
}

func toPoint(r *core.ReviewRecord) *qdrant.PointStruct {
	payload := make(map[string]any)
	for k, v := range recordMetadata(r) {
		payload[k] = v
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(r.ID)),
		Vectors: qdrant.NewVectors(r.Embedding...),
		Payload: qdrant.NewValueMap(payload),
	}
}

func fromPoint(p *qdrant.ScoredPoint) (core.ScoredRecord, error) {
	md := make(map[string]string, len(p.GetPayload()))
	for k, v := range p.GetPayload() {
		md[k] = v.GetStringValue()
	}
	rec, err := recordFromMetadata(p.GetId().GetUuid(), md)
	if err != nil {
		return core.ScoredRecord{}, err
	}

	if vec := p.GetVectors().GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			rec.Embedding = dense.GetData()
		} else {
			rec.Embedding = vec.GetData() //nolint:staticcheck // older servers only fill the flat field
		}
	}
	return core.ScoredRecord{Record: rec, Similarity: float64(p.GetScore())}, nil
}

func toFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qdrant.NewMatchKeyword(k, filter[k]))
	}
	return &qdrant.Filter{Must: must}
}

func (q *qdrantVectorStore) Query(ctx context.Context, vector []float32, n int, filter Filter) ([]core.ScoredRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant collection %s: %w", q.collection, err)
	}

	out := make([]core.ScoredRecord, 0, len(points))
	for _, p := range points {
		rec, err := fromPoint(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (q *qdrantVectorStore) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count qdrant collection %s: %w", q.collection, err)
	}
	return int(n), nil
}

func (q *qdrantVectorStore) Close() error {
	return q.client.Close()
}
