// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/fgoc/internal/adapters/ephemeris"
	batchqueue "github.com/okian/fgoc/internal/adapters/mq/queue"
	workerpool "github.com/okian/fgoc/internal/adapters/mq/worker"
	"github.com/okian/fgoc/internal/adapters/repository"
	"github.com/okian/fgoc/internal/domain/dedupe"
	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
	"github.com/okian/fgoc/internal/domain/shortarc"
	"github.com/okian/fgoc/pkg/logger"
	"github.com/okian/fgoc/pkg/metrics"
	"github.com/okian/fgoc/pkg/tracing"
)

const stopTimeout = 30 * time.Second

// SubmitStatus reports what happened to an asynchronous submission.
type SubmitStatus string

// Submission outcomes.
const (
	SubmitAccepted  SubmitStatus = "accepted"
	SubmitDuplicate SubmitStatus = "duplicate"
)

// Service implements the API dependencies for the diagnostics system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	queue     *batchqueue.InMemoryQueue
	scorer    *scoring.FocalScorer
	pool      *workerpool.Pool
	ephemeris ephemeris.Source
	tracer    trace.Tracer

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	params       model.ScoreParams
	mu0          float64
	shortArcOpts []shortarc.Option
	now          func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  100000,
		params:      model.DefaultScoreParams(),
		mu0:         model.EarthMu,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.ephemeris == nil {
		s.ephemeris = ephemeris.NewSGP4Source()
	}
	if s.tracer == nil {
		s.tracer = tracing.Tracer()
	}
	s.scorer = scoring.NewFocalScorer(
		scoring.WithParams(s.params),
		scoring.WithDefaultMu(s.mu0),
	)

	return s
}

// Start initializes the queue, deduper and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting diagnostics service...")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = batchqueue.NewInMemoryQueue(
		batchqueue.WithCapacity(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, s.store,
		workerpool.WithClock(s.now),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "diagnostics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Float64("mu", s.mu0),
		logger.Float64("tau", s.params.Tau),
	)

	return nil
}

// Stop drains the queue, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping diagnostics service...")

	if s.pool != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
		cancel()
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "diagnostics service stopped")
}

// Params returns the default scoring parameters.
func (s *Service) Params() model.ScoreParams { return s.params }

// Mu returns the default gravitational parameter.
func (s *Service) Mu() float64 { return s.mu0 }

// Diagnose computes FDR/FSBI diagnostics without scoring or storing.
func (s *Service) Diagnose(ctx context.Context, b model.Batch) (diagnostics.Series, error) { //nolint:gocritic // hugeParam: Batch is a request value
	ctx, span := s.tracer.Start(ctx, "service.Diagnose", trace.WithAttributes(
		attribute.String("series.id", b.ID),
		attribute.Int("series.k", b.Len()),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return diagnostics.Series{}, fmt.Errorf("context cancelled: %w", err)
	}

	mu := b.Mu
	if mu == 0 {
		mu = s.mu0
	}
	series, err := diagnostics.Compute(b.States, mu, b.Epochs)
	if err != nil {
		s.failSpan(span, err)
		metrics.RecordValidationFailure(diagnostics.Code(err))
		return diagnostics.Series{}, fmt.Errorf("diagnose series %q: %w", b.ID, err)
	}

	span.SetAttributes(
		attribute.Float64("diagnostics.fdr", series.FDR),
		attribute.Float64("diagnostics.fsbi", series.FSBI),
	)
	return series, nil
}

// Score scores a series synchronously and stores the result. An empty ID is
// replaced with a generated one.
func (s *Service) Score(ctx context.Context, b model.Batch) (scoring.Result, error) { //nolint:gocritic // hugeParam: Batch is a request value
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.SubmittedAt.IsZero() {
		b.SubmittedAt = s.now()
	}

	ctx, span := s.tracer.Start(ctx, "service.Score", trace.WithAttributes(
		attribute.String("series.id", b.ID),
		attribute.Int("series.k", b.Len()),
		attribute.String("series.source", b.Source),
	))
	defer span.End()

	start := time.Now()
	res, err := s.scorer.Score(ctx, scoring.InputFromBatch(&b))
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err == nil {
		err = res.Check()
	}
	if err != nil {
		s.failSpan(span, err)
		if diagnostics.IsValidation(err) {
			metrics.RecordValidationFailure(diagnostics.Code(err))
		}
		return scoring.Result{}, err
	}

	span.SetAttributes(
		attribute.Float64("score.s", res.S),
		attribute.Float64("score.p", res.P),
		attribute.Bool("score.flag", res.Flag),
	)

	if err := s.store.Put(ctx, repository.NewScoredRecord(&b, &res, s.now())); err != nil {
		s.failSpan(span, err)
		metrics.RecordErrorByComponent("service", "store_error")
		return scoring.Result{}, fmt.Errorf("store series %q: %w", b.ID, err)
	}
	metrics.RecordSeriesScored(res.S, res.P, res.Diagnostics.FDR, res.Diagnostics.FSBI, res.Flag, res.Diagnostics.DegenerateCount)

	s.logger.Debug(ctx, "series scored",
		logger.String("series_id", b.ID),
		logger.Float64("s", res.S),
		logger.Float64("p", res.P),
		logger.Bool("flag", res.Flag),
	)
	return res, nil
}

// Submit queues a series for asynchronous scoring. Repeated IDs are reported
// as duplicates and not queued again. A full queue returns ErrBackpressure
// and forgets the ID so the caller can retry.
func (s *Service) Submit(ctx context.Context, b model.Batch) (string, SubmitStatus, error) { //nolint:gocritic // hugeParam: Batch is queued by value
	s.mu.RLock()
	started, deduper, q := s.started, s.deduper, s.queue
	s.mu.RUnlock()

	if !started {
		return "", "", ErrNotStarted
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.SubmittedAt = s.now()

	if deduper.SeenAndRecord(ctx, b.ID) {
		metrics.RecordSeriesDuplicate()
		s.logger.Debug(ctx, "duplicate batch detected, skipping", logger.String("batch_id", b.ID))
		return b.ID, SubmitDuplicate, nil
	}

	if err := q.Enqueue(ctx, b); err != nil {
		deduper.Unrecord(ctx, b.ID)
		if errors.Is(err, batchqueue.ErrFull) {
			return b.ID, "", fmt.Errorf("enqueue batch %s: %w: %w", b.ID, ErrBackpressure, err)
		}
		return b.ID, "", fmt.Errorf("enqueue batch %s: %w", b.ID, err)
	}

	s.logger.Debug(ctx, "batch queued",
		logger.String("batch_id", b.ID),
		logger.Int("k", b.Len()),
	)
	return b.ID, SubmitAccepted, nil
}

// Result returns the stored record for id.
func (s *Service) Result(ctx context.Context, id string) (repository.Record, error) {
	return s.store.Get(ctx, id)
}

// TopN returns the n most anomalous stored results.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Record, error) {
	return s.store.TopN(ctx, n)
}

// ScoreTLE propagates a TLE into a state series and scores it. params
// overrides the default scoring parameters when non-nil.
func (s *Service) ScoreTLE(ctx context.Context, req ephemeris.Request, params *model.ScoreParams) (scoring.Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := s.tracer.Start(ctx, "service.ScoreTLE", trace.WithAttributes(
		attribute.String("series.id", req.ID),
		attribute.Int("tle.samples", req.Count),
	))
	defer span.End()

	for i, line := range []string{req.Line1, req.Line2} {
		if len(line) > 0 && !ephemeris.ChecksumOK(line) {
			s.logger.Warn(ctx, "tle checksum mismatch",
				logger.String("series_id", req.ID),
				logger.Int("line", i+1),
			)
		}
	}

	series, err := s.ephemeris.Propagate(ctx, req)
	if err != nil {
		s.failSpan(span, err)
		metrics.RecordErrorByComponent("ephemeris", "propagation_error")
		return scoring.Result{}, err
	}

	b := series.Batch()
	b.Params = params
	return s.Score(ctx, b)
}

// ClassifyShortArc runs the short-arc RA/Dec classifier.
func (s *Service) ClassifyShortArc(ctx context.Context, obs []shortarc.Observation) (shortarc.Result, error) {
	_, span := s.tracer.Start(ctx, "service.ClassifyShortArc", trace.WithAttributes(
		attribute.Int("shortarc.n", len(obs)),
	))
	defer span.End()

	res, err := shortarc.Classify(obs, s.shortArcOpts...)
	if err != nil {
		s.failSpan(span, err)
		return shortarc.Result{}, err
	}

	span.SetAttributes(
		attribute.Float64("shortarc.score", res.Score),
		attribute.Bool("shortarc.flag", res.Flag),
	)
	metrics.RecordShortArc(res.Flag)
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"mu":          s.mu0,
		"params":      s.params,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()
		if n, err := s.store.Count(ctx); err == nil {
			stats["records"] = n
		}
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

func (s *Service) failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
