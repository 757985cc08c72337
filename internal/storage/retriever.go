package storage

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/retry"
)

// overFetch is how many raw candidates are requested per wanted result, so
// that thresholding rarely leaves fewer than k relevant matches behind.
const overFetch = 3

// maxCandidates bounds the widening of a query whose tail is all ties.
const maxCandidates = 4096

// tieEpsilon absorbs float noise between store scores and recomputed ones.
const tieEpsilon = 1e-9

// Retriever ranks vector store candidates. It owns the threshold, ordering
// and top-k rules so every backend behaves the same.
type Retriever struct {
	store     VectorStore
	topK      int
	threshold float64
	dimension int
	timeout   time.Duration
	policy    retry.Policy
	logger    *slog.Logger
}

// NewRetriever wraps store. Store failures are retried once with policy.
func NewRetriever(store VectorStore, cfg config.RetrievalConfig, dimension int, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *Retriever {
	return &Retriever{
		store:     store,
		topK:      cfg.TopK,
		threshold: cfg.SimilarityThreshold,
		dimension: dimension,
		timeout:   timeout,
		policy:    policy.WithMaxAttempts(2),
		logger:    logger,
	}
}

// TopK is the hard cap on results per query.
func (r *Retriever) TopK() int {
	return r.topK
}

// Upsert stores already embedded records, replacing any with the same ID.
func (r *Retriever) Upsert(ctx context.Context, records []core.ReviewRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != r.dimension {
			return core.NewError(core.KindValidation, "upsert",
				fmt.Errorf("record %s: %w: got %d, want %d", records[i].ID, core.ErrDimensionMismatch, len(records[i].Embedding), r.dimension))
		}
	}

	return retry.Run(ctx, r.policy, "vector store upsert", func(ctx context.Context) error {
		return r.call(ctx, "upsert", func(ctx context.Context) error {
			return r.store.Upsert(ctx, records)
		})
	})
}

// Query returns at most min(k, TopK) records whose similarity to vector is at
// least the configured threshold, sorted by similarity and then recency.
// k <= 0 means TopK.
func (r *Retriever) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]core.ScoredRecord, error) {
	if len(vector) != r.dimension {
		return nil, core.NewError(core.KindValidation, "query",
			fmt.Errorf("%w: got %d, want %d", core.ErrDimensionMismatch, len(vector), r.dimension))
	}
	if k <= 0 || k > r.topK {
		k = r.topK
	}

	var (
		candidates []core.ScoredRecord
		results    []core.ScoredRecord
	)
	// Backends return ties in arbitrary order, so widen the fetch until the
	// weakest candidate scores below the k-th result or the store runs out.
	for n := k * overFetch; ; n *= 2 {
		err := retry.Run(ctx, r.policy, "vector store query", func(ctx context.Context) error {
			return r.call(ctx, "query", func(ctx context.Context) error {
				var err error
				candidates, err = r.store.Query(ctx, vector, n, filter)
				return err
			})
		})
		if err != nil {
			return nil, err
		}

		results = Rank(vector, candidates, r.threshold, k)
		if len(candidates) < n || !tailTied(vector, candidates, results, k) {
			break
		}
		if n >= maxCandidates {
			r.logger.Warn("too many equally similar reviews, tie order may be incomplete", "candidates", len(candidates))
			break
		}
	}

	r.logger.Debug("retrieved similar reviews",
		"candidates", len(candidates),
		"results", len(results),
		"threshold", r.threshold,
	)
	return results, nil
}

// Count returns the number of stored records.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	var n int
	err := r.call(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = r.store.Count(ctx)
		return err
	})
	return n, err
}

// tailTied reports whether the least similar fetched candidate still ties the
// last ranked result, so unfetched records could outrank it on recency.
func tailTied(query []float32, candidates, ranked []core.ScoredRecord, k int) bool {
	if len(ranked) < k || len(candidates) == 0 {
		return false
	}
	weakest := math.Inf(1)
	for _, c := range candidates {
		sim := c.Similarity
		if len(c.Record.Embedding) == len(query) {
			sim = Cosine(query, c.Record.Embedding)
		}
		weakest = math.Min(weakest, sim)
	}
	return weakest >= ranked[k-1].Similarity-tieEpsilon
}

// call runs fn under the store timeout and classifies its failure.
func (r *Retriever) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// The caller gave up; this is not the store's fault.
		return core.NewError(core.KindTransientProvider, op, ctx.Err())
	}
	if callCtx.Err() != nil {
		return core.NewError(core.KindRetrieval, op, fmt.Errorf("%w: timed out after %s", core.ErrStoreUnavailable, r.timeout))
	}
	return core.NewError(core.KindRetrieval, op, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err))
}

// Rank recomputes cosine similarity where the candidate carries its vector,
// drops everything under threshold, orders the rest and keeps the first k.
func Rank(query []float32, candidates []core.ScoredRecord, threshold float64, k int) []core.ScoredRecord {
	kept := make([]core.ScoredRecord, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Record.Embedding) == len(query) {
			c.Similarity = Cosine(query, c.Record.Embedding)
		}
		if c.Similarity >= threshold {
			kept = append(kept, c)
		}
	}

	slices.SortStableFunc(kept, func(a, b core.ScoredRecord) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		if c := b.Record.IngestedAt.Compare(a.Record.IngestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})

	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
// A zero vector has similarity 0 with everything.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}
