// Package worker drains the batch queue, scores each series and stores the
// outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/fgoc/internal/adapters/repository"
	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
	"github.com/okian/fgoc/pkg/logger"
	"github.com/okian/fgoc/pkg/metrics"
)

const (
	poolShutdownTimeout = 30 * time.Second
)

// Recorder persists processed series.
type Recorder interface {
	Put(ctx context.Context, r repository.Record) error
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Batch
}

// Worker processes batches and writes records using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current batch.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	scorer   scoring.Scorer
	recorder Recorder
	name     string
	now      func() time.Time

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer scoring.Scorer, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scorer:   scorer,
		recorder: recorder,
		name:     "worker",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if err := w.process(ctx, &b); err != nil {
				w.logger.Error(ctx, "error processing batch", logger.String("batch_id", b.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns the number of batches stored as scored.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of batches stored as failed.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// process scores one batch. Validation failures, including results that
// overflowed to Inf or NaN, are stored as failed records; anything else is
// returned.
func (w *InMemoryWorker) process(ctx context.Context, b *model.Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	scoreStart := time.Now()
	res, err := w.scorer.Score(ctx, scoring.InputFromBatch(b))
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)
	if err == nil {
		err = res.Check()
	}

	var rec repository.Record
	switch {
	case err == nil:
		rec = repository.NewScoredRecord(b, &res, w.now())
		metrics.RecordSeriesScored(res.S, res.P, res.Diagnostics.FDR, res.Diagnostics.FSBI, res.Flag, res.Diagnostics.DegenerateCount)
	case diagnostics.IsValidation(err):
		rec = repository.NewFailedRecord(b, err, w.now())
		metrics.RecordValidationFailure(rec.ErrorCode)
		w.logger.Warn(ctx, "batch rejected",
			logger.String("batch_id", b.ID),
			logger.String("code", rec.ErrorCode),
			logger.Error(err),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("score batch %s: %w", b.ID, err)
	}

	if err := w.recorder.Put(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store batch %s: %w", b.ID, err)
	}

	if rec.Status == repository.StatusScored {
		w.processed.Add(1)
		w.logger.Debug(ctx, "batch scored",
			logger.String("batch_id", b.ID),
			logger.Float64("s", rec.S),
			logger.Float64("p", rec.P),
			logger.Bool("flag", rec.Flag),
		)
	} else {
		w.failed.Add(1)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker
// per CPU.
func NewPool(workerCount int, q Queue, scorer scoring.Scorer, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, scorer, recorder, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Processed returns the total number of scored batches.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the total number of failed batches.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
