package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevigo/precedent/internal/core"
)

// Review status label values.
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Collectors are the live Prometheus metrics of the review service.
type Collectors struct {
	registry *prometheus.Registry

	// RequestsTotal counts reviews by status (success, degraded, failed).
	RequestsTotal *prometheus.CounterVec
	// Duration tracks end-to-end review time.
	Duration prometheus.Histogram
	// SuggestionsTotal counts generated suggestions.
	// Labels: severity, category
	SuggestionsTotal *prometheus.CounterVec
	// VectorQueriesTotal counts retrieval queries issued by reviews.
	VectorQueriesTotal prometheus.Counter
	// TokensTotal counts generation tokens by model.
	TokensTotal *prometheus.CounterVec
	// VectorStoreDocuments is the collection size seen by the last health
	// check or ingest.
	VectorStoreDocuments prometheus.Gauge
}

// NewCollectors registers the review metrics, plus the Go runtime and
// process collectors, on a fresh registry.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "code_review_requests_total",
				Help: "Total number of code review requests by outcome",
			},
			[]string{"status"},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "code_review_duration_seconds",
				Help:    "Time spent processing code reviews in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
		),
		SuggestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "code_review_suggestions_generated_total",
				Help: "Total number of suggestions generated",
			},
			[]string{"severity", "category"},
		),
		VectorQueriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vector_db_reviews_total",
				Help: "Total number of vector store queries issued by reviews",
			},
		),
		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_used_total",
				Help: "Total number of generation tokens used",
			},
			[]string{"model"},
		),
		VectorStoreDocuments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vector_db_documents",
				Help: "Number of review records in the vector store collection",
			},
		),
	}
}

// Registry exposes the registry for tests and custom gatherers.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveReview updates the live metrics for one finished review.
func (c *Collectors) ObserveReview(status, model string, m core.ReviewMetrics, suggestions []core.Suggestion) {
	c.RequestsTotal.WithLabelValues(status).Inc()
	c.Duration.Observe(m.ProcessingTime)
	c.VectorQueriesTotal.Add(float64(m.VectorQueries))
	if m.TokensUsed > 0 {
		c.TokensTotal.WithLabelValues(model).Add(float64(m.TokensUsed))
	}
	for _, s := range suggestions {
		c.SuggestionsTotal.WithLabelValues(string(s.Severity), string(s.Category)).Inc()
	}
}

// ObserveStoreSize records the current collection size.
func (c *Collectors) ObserveStoreSize(documents int) {
	c.VectorStoreDocuments.Set(float64(documents))
}
