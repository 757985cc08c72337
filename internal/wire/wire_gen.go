// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"

	"github.com/sevigo/precedent/internal/app"
	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/llm"
	"github.com/sevigo/precedent/internal/metrics"
	"github.com/sevigo/precedent/internal/rag"
	"github.com/sevigo/precedent/internal/server"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	loggerConfig := provideLoggerConfig(cfg)
	writer, cleanup, err := provideLogWriter(loggerConfig)
	if err != nil {
		return nil, nil, err
	}
	slogLogger := provideSlogLogger(loggerConfig, writer)
	httpClient := provideHTTPClient()
	policy := provideRetryPolicy(cfg, slogLogger)

	backend, err := provideEmbeddingBackend(ctx, cfg, httpClient, slogLogger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	embeddingService := provideEmbeddingService(backend, cfg, policy, slogLogger)

	vectorStore, cleanup2, err := provideVectorStore(ctx, cfg, slogLogger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	retriever := provideRetriever(vectorStore, cfg, policy, slogLogger)

	generator, err := provideGenerator(ctx, cfg, httpClient, slogLogger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	promptManager, err := llm.NewPromptManager()
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	client := provideClient(generator, promptManager, cfg, policy, slogLogger)
	reviewGuide, err := provideReviewGuide(cfg, slogLogger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	assembler := provideAssembler(promptManager, client, cfg, reviewGuide)

	collector := provideFeedbackCollector(cfg, slogLogger)
	aggregator := provideAggregator(cfg, slogLogger)
	collectors := metrics.NewCollectors()
	healthChecker := provideHealthChecker(retriever, cfg, collectors, slogLogger)
	recorder := provideRecorder(aggregator, collectors, cfg)

	service, err := rag.NewService(cfg, embeddingService, retriever, assembler, client, reviewGuide, recorder, slogLogger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	job := provideIngestJob(service, healthChecker, slogLogger)
	dispatcher, cleanup3 := provideDispatcher(job, cfg, slogLogger)
	services := provideServices(service, collector, aggregator, dispatcher, healthChecker, collectors)
	serverServer := server.NewServer(cfg, services, slogLogger)
	application := app.NewApp(cfg, slogLogger, service, collector, aggregator, dispatcher, healthChecker, serverServer)
	return application, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
