// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/fgoc/internal/adapters/ephemeris"
	"github.com/okian/fgoc/internal/adapters/repository"
	service "github.com/okian/fgoc/internal/app"
	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/shortarc"
	"github.com/okian/fgoc/pkg/logger"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SeriesDependencies
	BatchDependencies
	AnomalyDependencies
	TLEDependencies
	ShortArcDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	seriesHandler   *SeriesHandler
	batchHandler    *BatchHandler
	anomalyHandler  *AnomalyHandler
	tleHandler      *TLEHandler
	shortArcHandler *ShortArcHandler
	logger          logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
	logger   logger.Logger
}

// WithMaxLimit caps the limit accepted by GET /v1/anomalies.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		seriesHandler:   NewSeriesHandler(deps),
		batchHandler:    NewBatchHandler(deps),
		anomalyHandler:  NewAnomalyHandler(deps, cfg.maxLimit),
		tleHandler:      NewTLEHandler(deps),
		shortArcHandler: NewShortArcHandler(deps),
		logger:          cfg.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.instrument(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", s.instrument(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/diagnostics", s.instrument(s.seriesHandler.HandleDiagnostics, "diagnostics"))
	mux.HandleFunc("POST /v1/score", s.instrument(s.seriesHandler.HandleScore, "score"))
	mux.HandleFunc("POST /v1/batches", s.instrument(s.batchHandler.HandleSubmit, "batches_submit"))
	mux.HandleFunc("GET /v1/batches/{id}", s.instrument(s.batchHandler.HandleGet, "batches_get"))
	mux.HandleFunc("GET /v1/anomalies", s.instrument(s.anomalyHandler.HandleGetAnomalies, "anomalies"))
	mux.HandleFunc("POST /v1/tle/score", s.instrument(s.tleHandler.HandleScoreTLE, "tle_score"))
	mux.HandleFunc("POST /v1/shortarc", s.instrument(s.shortArcHandler.HandleClassify, "shortarc"))
}

// internalErrorBody is sent when a response cannot be encoded.
const internalErrorBody = `{"code":"internal_error","message":"response encoding failed"}` + "\n"

// writeJSON encodes v before committing status, so an unencodable value
// becomes a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Get().Named("api").Error(context.Background(), "encode response",
			logger.Int("status", status),
			logger.Error(err),
		)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, internalErrorBody)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code, kind := classify(err)
	writeError(w, status, code, WrapKind(op, kind, err))
}

func classify(err error) (status int, code string, kind error) {
	if errors.Is(err, diagnostics.ErrNonFinite) {
		return http.StatusUnprocessableEntity, diagnostics.Code(err), ErrBadRequest
	}
	if c := diagnostics.Code(err); c != "" {
		return http.StatusBadRequest, c, ErrBadRequest
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request", ErrBadRequest
	case errors.Is(err, shortarc.ErrTooFewDetections):
		return http.StatusBadRequest, "too_few_detections", ErrBadRequest
	case errors.Is(err, shortarc.ErrLengthMismatch):
		return http.StatusBadRequest, "length_mismatch", ErrBadRequest
	case errors.Is(err, ephemeris.ErrInvalidTLE):
		return http.StatusBadRequest, "invalid_tle", ErrBadRequest
	case errors.Is(err, ephemeris.ErrInvalidRequest), errors.Is(err, repository.ErrInvalidID):
		return http.StatusBadRequest, "bad_request", ErrBadRequest
	case errors.Is(err, ephemeris.ErrPropagation):
		return http.StatusUnprocessableEntity, "propagation_failed", ErrBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found", ErrNotFound
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure", ErrBackpressure
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable", ErrUnavailable
	default:
		return http.StatusInternalServerError, "internal_error", ErrInternal
	}
}
