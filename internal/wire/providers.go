package wire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/wire"

	"github.com/sevigo/precedent/internal/app"
	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/embedding"
	"github.com/sevigo/precedent/internal/feedback"
	"github.com/sevigo/precedent/internal/jobs"
	"github.com/sevigo/precedent/internal/llm"
	"github.com/sevigo/precedent/internal/logger"
	"github.com/sevigo/precedent/internal/metrics"
	"github.com/sevigo/precedent/internal/rag"
	"github.com/sevigo/precedent/internal/retry"
	"github.com/sevigo/precedent/internal/server"
	"github.com/sevigo/precedent/internal/storage"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	rag.NewService,
	llm.NewPromptManager,
	metrics.NewCollectors,
	provideLoggerConfig,
	provideLogWriter,
	provideSlogLogger,
	provideHTTPClient,
	provideRetryPolicy,
	provideEmbeddingBackend,
	provideEmbeddingService,
	provideVectorStore,
	provideRetriever,
	provideHealthChecker,
	provideGenerator,
	provideClient,
	provideReviewGuide,
	provideAssembler,
	provideFeedbackCollector,
	provideAggregator,
	provideRecorder,
	provideIngestJob,
	provideDispatcher,
	provideServices,
)

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg logger.Config) (io.Writer, func(), error) {
	w, closeFn, err := logger.OpenOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	return w, func() { _ = closeFn() }, nil
}

func provideSlogLogger(cfg logger.Config, w io.Writer) *slog.Logger {
	return logger.NewLogger(cfg, w)
}

// provideHTTPClient leaves request deadlines to the per-call timeouts.
func provideHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func provideRetryPolicy(cfg *config.Config, logger *slog.Logger) retry.Policy {
	return retry.NewPolicy(cfg.Retry, logger)
}

func provideEmbeddingBackend(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (embedding.Backend, error) {
	return embedding.NewBackend(ctx, cfg.Embedding, cfg.LLM, httpClient, logger)
}

func provideEmbeddingService(backend embedding.Backend, cfg *config.Config, policy retry.Policy, logger *slog.Logger) embedding.Service {
	return embedding.NewService(backend, cfg.Embedding, cfg.Timeouts.Embedding, policy, logger)
}

func provideVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.VectorStore, func(), error) {
	storeCfg := cfg.VectorStore
	storeCfg.CollectionName = storage.CollectionName(storeCfg.CollectionName, cfg.Embedding.Model)

	var (
		store storage.VectorStore
		err   error
	)
	switch storeCfg.Backend {
	case config.StoreQdrant:
		store, err = storage.NewQdrantVectorStore(ctx, storeCfg, cfg.Embedding.Dimension, logger)
	case config.StoreChromem:
		store, err = storage.NewChromemVectorStore(storeCfg.Path, storeCfg.CollectionName, cfg.Embedding.Dimension, logger)
	default:
		err = fmt.Errorf("unsupported vector store: %s", storeCfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close vector store", "error", err)
		}
	}
	return store, cleanup, nil
}

func provideRetriever(store storage.VectorStore, cfg *config.Config, policy retry.Policy, logger *slog.Logger) *storage.Retriever {
	return storage.NewRetriever(store, cfg.Retrieval, cfg.Embedding.Dimension, cfg.Timeouts.VectorStore, policy, logger)
}

func provideHealthChecker(retriever *storage.Retriever, cfg *config.Config, collectors *metrics.Collectors, logger *slog.Logger) *storage.HealthChecker {
	collection := storage.CollectionName(cfg.VectorStore.CollectionName, cfg.Embedding.Model)
	return storage.NewHealthChecker(retriever, cfg.VectorStore.Backend, collection, collectors.ObserveStoreSize, logger)
}

func provideGenerator(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (llm.Generator, error) {
	return llm.NewGenerator(ctx, cfg.LLM, httpClient, logger)
}

func provideClient(gen llm.Generator, pm *llm.PromptManager, cfg *config.Config, policy retry.Policy, logger *slog.Logger) *llm.Client {
	return llm.NewClient(gen, pm, cfg.LLM, cfg.Timeouts.Generation, policy, logger)
}

func provideReviewGuide(cfg *config.Config, logger *slog.Logger) (*core.ReviewGuide, error) {
	guide, err := config.LoadReviewGuide(cfg.Retrieval.ReviewGuidePath)
	if err != nil {
		if guide != nil {
			logger.Warn("review guide not loaded, using defaults", "path", cfg.Retrieval.ReviewGuidePath, "error", err)
			return guide, nil
		}
		return nil, err
	}
	return guide, nil
}

func provideAssembler(pm *llm.PromptManager, client *llm.Client, cfg *config.Config, guide *core.ReviewGuide) *llm.Assembler {
	return llm.NewAssembler(pm, client.Provider(), cfg.Retrieval.TopK, promptBudget(cfg.Retrieval), guide)
}

// promptBudget is the assembler's character budget; a token budget wins.
func promptBudget(cfg config.RetrievalConfig) int {
	if cfg.PromptBudgetTokens > 0 {
		return llm.BudgetFromTokens(cfg.PromptBudgetTokens)
	}
	return cfg.PromptBudgetChars
}

func provideFeedbackCollector(cfg *config.Config, logger *slog.Logger) *feedback.Collector {
	return feedback.NewCollector(cfg.Logs.FeedbackPath, logger)
}

func provideAggregator(cfg *config.Config, logger *slog.Logger) *metrics.Aggregator {
	return metrics.NewAggregator(cfg.Logs.MetricsPath, logger)
}

func provideRecorder(agg *metrics.Aggregator, collectors *metrics.Collectors, cfg *config.Config) rag.MetricsRecorder {
	return metrics.NewRecorder(agg, collectors, cfg.LLM.Model)
}

func provideIngestJob(svc rag.Service, checker *storage.HealthChecker, logger *slog.Logger) core.Job {
	return jobs.NewIngestJob(svc, checker, logger)
}

func provideDispatcher(job core.Job, cfg *config.Config, logger *slog.Logger) (core.JobDispatcher, func()) {
	d := jobs.NewDispatcher(job, cfg.Pipeline.MaxWorkers, logger)
	return d, d.Stop
}

func provideServices(svc rag.Service, fb *feedback.Collector, agg *metrics.Aggregator, dispatcher core.JobDispatcher, checker *storage.HealthChecker, collectors *metrics.Collectors) server.Services {
	return server.Services{
		Reviewer:   svc,
		Feedback:   fb,
		Stats:      agg,
		Dispatcher: dispatcher,
		Health:     checker,
		Metrics:    collectors.Handler(),
	}
}
