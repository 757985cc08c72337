package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/feedback"
	"github.com/sevigo/precedent/internal/jobs"
	"github.com/sevigo/precedent/internal/metrics"
	"github.com/sevigo/precedent/internal/storage"
)

type reviewerFunc func(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error)

func (f reviewerFunc) Review(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
	return f(ctx, req)
}

type fakeDispatcher struct {
	err     error
	batches []*core.IngestBatch
}

func (d *fakeDispatcher) Dispatch(_ context.Context, b *core.IngestBatch) error {
	if d.err != nil {
		return d.err
	}
	d.batches = append(d.batches, b)
	return nil
}

func (d *fakeDispatcher) Stop() {}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countFunc func(ctx context.Context) (int, error)

func (f countFunc) Count(ctx context.Context) (int, error) {
	return f(ctx)
}

func newTestRouter(t *testing.T, reviewer reviewerFunc, dispatcher core.JobDispatcher) http.Handler {
	t.Helper()
	return newRouterWith(t, reviewer, dispatcher, nil, metrics.NewCollectors())
}

func newRouterWith(t *testing.T, reviewer reviewerFunc, dispatcher core.JobDispatcher, health *storage.HealthChecker, collectors *metrics.Collectors) http.Handler {
	t.Helper()
	dir := t.TempDir()
	svc := Services{
		Reviewer:   reviewer,
		Feedback:   feedback.NewCollector(filepath.Join(dir, "feedback.jsonl"), testLogger()),
		Stats:      metrics.NewAggregator(filepath.Join(dir, "metrics.jsonl"), testLogger()),
		Dispatcher: dispatcher,
		Metrics:    collectors.Handler(),
	}
	if health != nil {
		svc.Health = health
	}
	return NewRouter(svc, 5*time.Second, testLogger())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const reviewBody = `{"repository":"acme/api","pr_number":3,"files":[{"file_path":"main.go","patch":"@@ -1 +1 @@\n-a\n+b"}]}`

func TestReviewEndpoint_StatusMapping(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "success", body: reviewBody, wantStatus: http.StatusOK},
		{name: "malformed json", body: `{"repository":`, wantStatus: http.StatusBadRequest, wantKind: "validation error"},
		{name: "unknown field", body: `{"repo":"x"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "validation error",
			body:       reviewBody,
			err:        core.NewError(core.KindValidation, "parse diff", errors.New("bad hunk")),
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation error",
		},
		{
			name:       "fatal provider error",
			body:       reviewBody,
			err:        core.NewError(core.KindFatalProvider, "generate", core.ErrProviderQuotaExceeded),
			wantStatus: http.StatusBadGateway,
			wantKind:   "fatal provider error",
		},
		{
			name:       "transient provider error",
			body:       reviewBody,
			err:        core.NewError(core.KindTransientProvider, "review", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "wrapped retrieval error",
			body:       reviewBody,
			err:        fmt.Errorf("failed: %w", core.NewError(core.KindRetrieval, "query", core.ErrStoreUnavailable)),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   "retrieval error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := newTestRouter(t, func(_ context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
				called = true
				assert.Equal(t, "acme/api", req.Repository)
				if tc.err != nil {
					return nil, tc.err
				}
				return &core.ReviewResult{Suggestions: []core.Suggestion{}, Summary: "No issues found. Code looks good!", State: core.StateCompleted}, nil
			}, &fakeDispatcher{})

			rec := do(t, h, http.MethodPost, "/api/v1/review", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tc.wantStatus == http.StatusOK {
				var result core.ReviewResult
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
				assert.Equal(t, core.StateCompleted, result.State)
				return
			}
			var resp errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, resp.Kind)
			}
			if tc.err == nil {
				assert.False(t, called, "invalid bodies never reach the pipeline")
			}
		})
	}
}

func TestFeedbackEndpoints(t *testing.T) {
	h := newTestRouter(t, nil, &fakeDispatcher{})

	bodies := []string{
		`{"suggestion_id":"s1","pr_number":3,"was_helpful":true,"category":"bug"}`,
		`{"suggestion_id":"s2","pr_number":3,"was_helpful":false,"category":"bug"}`,
		`{"suggestion_id":"s3","pr_number":4,"was_helpful":true}`,
	}
	for _, b := range bodies {
		rec := do(t, h, http.MethodPost, "/api/v1/feedback", b)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodPost, "/api/v1/feedback", `{"pr_number":3,"was_helpful":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/feedback/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats core.FeedbackStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Helpful)
	assert.Equal(t, 2, stats.ByCategory["bug"].Total)
	assert.InDelta(t, 0.5, stats.ByCategory["bug"].HelpfulRatio, 1e-9)
	assert.Equal(t, 1, stats.ByCategory[core.UncategorizedKey].Total)
}

func TestSummaryStatsEndpoint(t *testing.T) {
	h := newTestRouter(t, nil, &fakeDispatcher{})

	testCases := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusOK},
		{query: "?window=1h", wantStatus: http.StatusOK},
		{query: "?window=0s", wantStatus: http.StatusOK},
		{query: "?window=yesterday", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/stats"+tc.query, "")
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				var s core.SummaryStats
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
				assert.Zero(t, s.Reviews)
			}
		})
	}
}

func TestIngestEndpoint(t *testing.T) {
	body := `{"records":[{"id":"r1","repository":"acme/api","comment":"check nil"}]}`

	t.Run("accepted", func(t *testing.T) {
		d := &fakeDispatcher{}
		rec := do(t, newTestRouter(t, nil, d), http.MethodPost, "/api/v1/ingest", body)
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, d.batches, 1)
		assert.NotEmpty(t, d.batches[0].ID)
		assert.Equal(t, "r1", d.batches[0].Records[0].ID)
	})

	t.Run("queue full", func(t *testing.T) {
		rec := do(t, newTestRouter(t, nil, &fakeDispatcher{err: jobs.ErrQueueFull}), http.MethodPost, "/api/v1/ingest", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("empty batch", func(t *testing.T) {
		rec := do(t, newTestRouter(t, nil, &fakeDispatcher{}), http.MethodPost, "/api/v1/ingest", `{"records":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, nil, &fakeDispatcher{})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHealthEndpoint_VectorStore(t *testing.T) {
	testCases := []struct {
		name       string
		count      countFunc
		wantStatus int
		wantStore  string
		wantDocs   int
		wantGauge  float64
	}{
		{
			name:       "store answers",
			count:      func(context.Context) (int, error) { return 128, nil },
			wantStatus: http.StatusOK,
			wantStore:  core.StoreUp,
			wantDocs:   128,
			wantGauge:  128,
		},
		{
			name: "store unreachable",
			count: func(context.Context) (int, error) {
				return 0, core.NewError(core.KindRetrieval, "count", core.ErrStoreUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantStore:  core.StoreDown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			collectors := metrics.NewCollectors()
			checker := storage.NewHealthChecker(tc.count, "chromem", "reviews_test", collectors.ObserveStoreSize, testLogger())
			h := newRouterWith(t, nil, &fakeDispatcher{}, checker, collectors)

			rec := do(t, h, http.MethodGet, "/health", "")
			assert.Equal(t, tc.wantStatus, rec.Code)

			var body struct {
				Status      string           `json:"status"`
				VectorStore core.StoreHealth `json:"vector_store"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "chromem", body.VectorStore.Backend)
			assert.Equal(t, "reviews_test", body.VectorStore.Collection)
			assert.Equal(t, tc.wantStore, body.VectorStore.Status)
			assert.Equal(t, tc.wantDocs, body.VectorStore.Documents)
			if tc.wantStatus != http.StatusOK {
				assert.NotEmpty(t, body.VectorStore.Error)
			}
			assert.InDelta(t, tc.wantGauge, testutil.ToFloat64(collectors.VectorStoreDocuments), 1e-9)
		})
	}
}
