// Package repository stores scored series and ranks them by anomaly score.
package repository

import (
	"context"
	"time"

	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
)

// Status is the processing state of a stored series.
type Status string

// Record statuses.
const (
	StatusScored Status = "scored"
	StatusFailed Status = "failed"
)

// Record is the persisted summary of one processed series.
type Record struct {
	ID     string
	Status Status
	Source string
	// Rank is the 1-based position by S desc, ID asc among scored records.
	// It is filled on reads and is 0 for failed records.
	Rank            int
	K               int
	Mu              float64
	Params          model.ScoreParams
	S               float64
	P               float64
	Flag            bool
	FDR             float64
	FSBI            float64
	TermSep         float64
	TermCM          float64
	DegenerateCount int
	ErrorCode       string
	Error           string
	ScoredAt        time.Time
}

// NewScoredRecord summarises a successful scoring result.
func NewScoredRecord(b *model.Batch, res *scoring.Result, at time.Time) Record {
	return Record{
		ID:              b.ID,
		Status:          StatusScored,
		Source:          b.Source,
		K:               len(b.States),
		Mu:              res.Mu,
		Params:          res.Params,
		S:               res.S,
		P:               res.P,
		Flag:            res.Flag,
		FDR:             res.Diagnostics.FDR,
		FSBI:            res.Diagnostics.FSBI,
		TermSep:         res.Diagnostics.TermSep,
		TermCM:          res.Diagnostics.TermCM,
		DegenerateCount: res.Diagnostics.DegenerateCount,
		ScoredAt:        at.UTC(),
	}
}

// NewFailedRecord records a series that could not be scored.
func NewFailedRecord(b *model.Batch, err error, at time.Time) Record {
	code := diagnostics.Code(err)
	if code == "" {
		code = "internal"
	}
	return Record{
		ID:        b.ID,
		Status:    StatusFailed,
		Source:    b.Source,
		K:         len(b.States),
		Mu:        b.Mu,
		ErrorCode: code,
		Error:     err.Error(),
		ScoredAt:  at.UTC(),
	}
}

// Store provides read/write access to processed series.
type Store interface {
	// Put inserts or replaces the record with r.ID.
	Put(ctx context.Context, r Record) error

	// Get returns the record for id. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (Record, error)

	// TopN returns up to n scored records ordered by S desc, then ID asc.
	TopN(ctx context.Context, n int) ([]Record, error)

	// Count returns the number of stored records, failed ones included.
	Count(ctx context.Context) (int, error)

	Close() error
}
