package service

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/fgoc/internal/adapters/ephemeris"
	"github.com/okian/fgoc/internal/adapters/repository"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/shortarc"
	"github.com/okian/fgoc/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the batch ID cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParams sets the default scoring parameters.
func WithParams(p model.ScoreParams) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithMu sets the default gravitational parameter in km^3/s^2.
func WithMu(mu float64) Option {
	return func(s *Service) {
		if mu > 0 {
			s.mu0 = mu
		}
	}
}

// WithStore sets the result store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithShortArcOptions sets the short-arc classifier tuning.
func WithShortArcOptions(opts ...shortarc.Option) Option {
	return func(s *Service) {
		s.shortArcOpts = append(s.shortArcOpts, opts...)
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithEphemerisSource sets the source used by ScoreTLE.
func WithEphemerisSource(src ephemeris.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.ephemeris = src
		}
	}
}

// WithClock sets the time source for submission and scoring timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
