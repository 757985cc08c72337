// Package rag implements the retrieval-augmented review pipeline: it embeds
// each changed chunk, retrieves similar past reviews, assembles a bounded
// prompt, generates suggestions and records the outcome.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/diff"
	"github.com/sevigo/precedent/internal/embedding"
	"github.com/sevigo/precedent/internal/jobs"
	"github.com/sevigo/precedent/internal/llm"
	"github.com/sevigo/precedent/internal/metrics"
	"github.com/sevigo/precedent/internal/storage"
)

// chunkMargin keeps room for the file path and language that the fixed
// prompt overhead does not include.
const chunkMargin = 200

// MetricsRecorder receives one call per finished review.
//
//go:generate mockgen -destination=../../mocks/mock_metrics_recorder.go -package=mocks . MetricsRecorder
type MetricsRecorder interface {
	RecordReview(ctx context.Context, status string, m core.ReviewMetrics, suggestions []core.Suggestion) error
}

// Service defines the core operations of the review pipeline.
type Service interface {
	// Review produces suggestions for every reviewable file in req.
	Review(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error)
	// Ingest embeds and stores historical review records.
	Ingest(ctx context.Context, records []core.ReviewRecord) (*core.IngestReport, error)
}

type ragService struct {
	embedder   embedding.Service
	retriever  *storage.Retriever
	assembler  *llm.Assembler
	client     *llm.Client
	guide      *core.ReviewGuide
	recorder   MetricsRecorder
	sem        *semaphore.Weighted
	chunkChars int
	parallel   int
	now        func() time.Time
	logger     *slog.Logger
}

// NewService wires the pipeline stages. Every collaborator is passed in
// explicitly; the service keeps no request state between calls.
func NewService(
	cfg *config.Config,
	embedder embedding.Service,
	retriever *storage.Retriever,
	assembler *llm.Assembler,
	client *llm.Client,
	guide *core.ReviewGuide,
	recorder MetricsRecorder,
	logger *slog.Logger,
) (Service, error) {
	codeBudget, err := assembler.CodeBudget()
	if err != nil {
		return nil, err
	}
	chunkChars := (codeBudget - chunkMargin) / 2
	if chunkChars < 1 {
		return nil, fmt.Errorf("prompt budget leaves %d characters for code, not enough for a chunk", codeBudget)
	}
	if guide == nil {
		guide = core.DefaultReviewGuide()
	}

	return &ragService{
		embedder:   embedder,
		retriever:  retriever,
		assembler:  assembler,
		client:     client,
		guide:      guide,
		recorder:   recorder,
		sem:        semaphore.NewWeighted(int64(cfg.Pipeline.MaxConcurrentReviews)),
		chunkChars: chunkChars,
		parallel:   cfg.Pipeline.MaxParallelChunks,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// request is the mutable state of one review. It never outlives Review.
type request struct {
	req     *core.ReviewRequest
	tracker *core.StateTracker
	chunks  []diff.Chunk
	files   int

	vectors  [][]float32
	contexts [][]core.ScoredRecord
	prompts  []*llm.Prompt
	drafts   []*llm.Draft
	outcomes []*llm.Outcome

	vectorQueries int
	notes         []string
}

func (r *request) degraded() bool {
	return len(r.notes) > 0
}

func (r *request) note(n string) {
	for _, existing := range r.notes {
		if existing == n {
			return
		}
	}
	r.notes = append(r.notes, n)
}

// Review runs one request through the state machine. Validation and fatal
// provider errors fail the request; retrieval, embedding and transient
// generation failures degrade it to fewer suggestions with a flagged summary.
func (s *ragService) Review(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
	if req == nil {
		return nil, core.NewError(core.KindValidation, "review", errors.New("request is required"))
	}
	r := &request{req: req, tracker: core.NewStateTracker(s.now)}

	if err := req.Validate(); err != nil {
		s.recordFailure(ctx, r)
		return nil, err
	}
	if err := s.chunk(r); err != nil {
		s.recordFailure(ctx, r)
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.recordFailure(ctx, r)
		return nil, core.NewError(core.KindTransientProvider, "review", err)
	}
	defer s.sem.Release(1)

	s.logger.Info("starting review",
		"repo", req.Repository,
		"pr", req.PRNumber,
		"files", r.files,
		"chunks", len(r.chunks),
	)

	stages := []struct {
		state core.RequestState
		run   func(context.Context, *request) error
	}{
		{core.StateEmbedding, s.embed},
		{core.StateRetrieving, s.retrieve},
		{core.StateAssembling, s.assemble},
		{core.StateGenerating, s.generate},
		{core.StateParsing, s.parse},
	}
	for _, stage := range stages {
		if err := r.tracker.Transition(stage.state); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, s.fail(ctx, r, err)
		}
		if err := stage.run(ctx, r); err != nil {
			return nil, s.fail(ctx, r, err)
		}
	}

	result := s.finish(r)
	if err := r.tracker.Transition(core.StateCompleted); err != nil {
		return nil, err
	}
	result.State = core.StateCompleted
	result.ProcessingTime = r.tracker.Elapsed()
	result.StageTimings = r.tracker.Timings()

	status := metrics.StatusSuccess
	if result.Degraded {
		status = metrics.StatusDegraded
	}
	s.record(ctx, status, s.reviewMetrics(r, result), result.Suggestions)

	s.logger.Info("review completed",
		"repo", req.Repository,
		"pr", req.PRNumber,
		"suggestions", len(result.Suggestions),
		"degraded", result.Degraded,
		"duration", result.ProcessingTime,
	)
	return result, nil
}

// chunk splits every reviewable file into prompt-sized pieces.
func (s *ragService) chunk(r *request) error {
	for _, file := range r.req.Files {
		if s.guide.Skips(file) {
			s.logger.Debug("skipping file excluded by review guide", "file", file.FilePath)
			continue
		}
		chunks, err := diff.SplitFile(file, s.chunkChars)
		if err != nil {
			return fmt.Errorf("file %s: %w", file.FilePath, err)
		}
		if len(chunks) > 0 {
			r.files++
		}
		r.chunks = append(r.chunks, chunks...)
	}
	return nil
}

func (s *ragService) embed(ctx context.Context, r *request) error {
	if len(r.chunks) == 0 {
		return nil
	}
	texts := make([]string, len(r.chunks))
	for i, c := range r.chunks {
		texts[i] = embedding.CodeChangeText(c.Patch, fmt.Sprintf("%s (%s)", c.FilePath, c.Language))
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		if !degradable(ctx, err) {
			return err
		}
		s.logger.Warn("embedding unavailable, reviewing without past context", "error", err)
		r.note(NoteNoContext)
		return nil
	}
	r.vectors = vectors
	return nil
}

func (s *ragService) retrieve(ctx context.Context, r *request) error {
	r.contexts = make([][]core.ScoredRecord, len(r.chunks))
	if r.vectors == nil {
		return nil
	}

	failures := make([]error, len(r.chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i := range r.chunks {
		g.Go(func() error {
			records, err := s.retriever.Query(gctx, r.vectors[i], s.retriever.TopK(), nil)
			if err != nil {
				if !degradable(gctx, err) {
					return err
				}
				failures[i] = err
				return nil
			}
			r.contexts[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.vectorQueries += len(r.chunks)

	for _, err := range failures {
		if err != nil {
			s.logger.Warn("retrieval failed, reviewing without past context", "error", err)
			r.note(NoteNoContext)
			break
		}
	}
	return nil
}

func (s *ragService) assemble(_ context.Context, r *request) error {
	r.prompts = make([]*llm.Prompt, len(r.chunks))
	for i, c := range r.chunks {
		p, err := s.assembler.Assemble(llm.CodeUnit{
			FilePath: c.FilePath,
			Language: c.Language,
			Patch:    c.Patch,
		}, r.contexts[i])
		if err != nil {
			return err
		}
		r.prompts[i] = p
	}
	return nil
}

func (s *ragService) generate(ctx context.Context, r *request) error {
	r.drafts = make([]*llm.Draft, len(r.prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i := range r.prompts {
		g.Go(func() error {
			d, err := s.client.Draft(gctx, r.prompts[i])
			if err != nil {
				return err
			}
			r.drafts[i] = d
			return nil
		})
	}
	return g.Wait()
}

// parse validates every draft. A corrective generation issued here is
// charged to PARSING.
func (s *ragService) parse(ctx context.Context, r *request) error {
	r.outcomes = make([]*llm.Outcome, len(r.drafts))
	target := llm.Target{Repository: r.req.Repository, PRNumber: r.req.PRNumber}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i := range r.drafts {
		g.Go(func() error {
			out, err := s.client.Parse(gctx, target, r.drafts[i])
			if err != nil {
				return err
			}
			r.outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range r.outcomes {
		if out.Degraded {
			r.note(out.Note)
		}
	}
	return nil
}

// finish anchors suggestions to changed lines and writes the summary.
func (s *ragService) finish(r *request) *core.ReviewResult {
	validLines := make(map[string]map[int]struct{})
	for _, c := range r.chunks {
		if _, ok := validLines[c.FilePath]; ok {
			continue
		}
		for _, f := range r.req.Files {
			if f.FilePath == c.FilePath {
				validLines[c.FilePath] = diff.ValidLines(f.Patch, s.logger)
				break
			}
		}
	}

	var (
		all     []core.Suggestion
		origins []string
	)
	seen := make(map[string]struct{})
	for i, out := range r.outcomes {
		for _, sg := range out.Suggestions {
			if _, dup := seen[sg.ID]; dup {
				continue
			}
			seen[sg.ID] = struct{}{}
			all = append(all, sg)
			origins = append(origins, r.chunks[i].FilePath)
		}
	}

	inline, fileLevel := jobs.ValidateSuggestionsByLine(s.logger, all, origins, validLines)
	suggestions := make([]core.Suggestion, 0, len(inline)+len(fileLevel))
	suggestions = append(suggestions, inline...)
	suggestions = append(suggestions, fileLevel...)

	return &core.ReviewResult{
		Suggestions: suggestions,
		Summary:     summarize(len(r.chunks) == 0, suggestions, r.notes),
		Degraded:    r.degraded(),
	}
}

// fail moves the request to FAILED, records it and returns err classified.
func (s *ragService) fail(ctx context.Context, r *request, err error) error {
	err = classify(ctx, err)
	state := r.tracker.State()
	r.tracker.Fail()
	s.logger.Error("review failed",
		"repo", r.req.Repository,
		"pr", r.req.PRNumber,
		"state", state,
		"error", err,
	)
	s.recordFailure(ctx, r)
	return err
}

func (s *ragService) recordFailure(ctx context.Context, r *request) {
	m := core.ReviewMetrics{
		PRNumber:       r.req.PRNumber,
		Repository:     r.req.Repository,
		ProcessingTime: r.tracker.Elapsed().Seconds(),
		StageTimings:   make(map[core.RequestState]float64),
		VectorQueries:  r.vectorQueries,
	}
	for state, d := range r.tracker.Timings() {
		m.StageTimings[state] = d.Seconds()
	}
	s.record(context.WithoutCancel(ctx), metrics.StatusFailed, m, nil)
}

func (s *ragService) record(ctx context.Context, status string, m core.ReviewMetrics, suggestions []core.Suggestion) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordReview(ctx, status, m, suggestions); err != nil {
		s.logger.Warn("failed to record review metrics", "error", err)
	}
}

func (s *ragService) reviewMetrics(r *request, result *core.ReviewResult) core.ReviewMetrics {
	m := core.ReviewMetrics{
		Timestamp:      s.now().UTC(),
		PRNumber:       r.req.PRNumber,
		Repository:     r.req.Repository,
		ProcessingTime: result.ProcessingTime.Seconds(),
		StageTimings:   make(map[core.RequestState]float64, len(result.StageTimings)),
		BySeverity:     core.CountBySeverity(result.Suggestions),
		Suggestions:    len(result.Suggestions),
		FilesReviewed:  r.files,
		VectorQueries:  r.vectorQueries,
		Degraded:       result.Degraded,
	}
	for state, d := range result.StageTimings {
		m.StageTimings[state] = d.Seconds()
	}
	for _, out := range r.outcomes {
		m.TokensUsed += out.TokensUsed
	}
	return m
}

// degradable reports whether a stage failure may be absorbed by reviewing
// without context. Validation, fatal provider errors and cancellation may not.
func degradable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch core.KindOf(err) {
	case core.KindTransientProvider, core.KindRetrieval:
		return true
	default:
		return false
	}
}

// classify guarantees that every error leaving the pipeline carries a kind.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && core.KindOf(err) != core.KindFatalProvider && core.KindOf(err) != core.KindValidation {
		return core.NewError(core.KindTransientProvider, "review", ctxErr)
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.NewError(core.KindTransientProvider, "review", err)
}
