// Package ephemeris produces orbit state series from two-line element sets
// using SGP4, so they can be fed to the focal diagnostics.
package ephemeris

import (
	"context"
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/numeric"
)

// WGS72Mu is the gravitational parameter SGP4 propagates with, in km^3/s^2.
const WGS72Mu = 398600.8

const (
	tleLineLength = 69
	// MaxSamples bounds a single propagation request.
	MaxSamples = 10000
)

// Request describes a sampling of one TLE.
type Request struct {
	ID    string
	Line1 string
	Line2 string
	Start time.Time
	Step  time.Duration
	Count int
}

// Series is a propagated state series in TEME, km and km/s. Epochs are
// seconds since Request.Start.
type Series struct {
	ID     string
	Mu     float64
	States []model.State
	Epochs []float64
}

// Batch converts the series into a scoring batch.
func (s Series) Batch() model.Batch {
	return model.Batch{
		ID:     s.ID,
		Mu:     s.Mu,
		States: s.States,
		Epochs: s.Epochs,
		Source: "tle",
	}
}

// Source produces state series.
type Source interface {
	Propagate(ctx context.Context, req Request) (Series, error)
}

// SGP4Source propagates TLEs with go-satellite.
type SGP4Source struct {
	gravity satellite.Gravity
	mu      float64
}

// NewSGP4Source returns a source using the WGS72 constants.
func NewSGP4Source() *SGP4Source {
	return &SGP4Source{gravity: satellite.GravityWGS72, mu: WGS72Mu}
}

// Propagate samples the TLE Count times, Step apart, starting at Start.
// Sub-second parts of the sample times are truncated.
func (s *SGP4Source) Propagate(ctx context.Context, req Request) (Series, error) {
	if err := validateRequest(req); err != nil {
		return Series{}, err
	}

	sat, err := parse(req.Line1, req.Line2, s.gravity)
	if err != nil {
		return Series{}, err
	}

	out := Series{
		ID:     req.ID,
		Mu:     s.mu,
		States: make([]model.State, 0, req.Count),
		Epochs: make([]float64, 0, req.Count),
	}
	start := req.Start.UTC().Truncate(time.Second)
	for i := 0; i < req.Count; i++ {
		if err := ctx.Err(); err != nil {
			return Series{}, fmt.Errorf("propagate: %w", err)
		}
		at := start.Add(time.Duration(i) * req.Step)
		year, month, day := at.Date()
		hour, minute, sec := at.Clock()

		pos, vel := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
		st := model.State{
			R: numeric.Vec{X: pos.X, Y: pos.Y, Z: pos.Z},
			V: numeric.Vec{X: vel.X, Y: vel.Y, Z: vel.Z},
		}
		if !numeric.IsFinite(st.R) || !numeric.IsFinite(st.V) || st.R == (numeric.Vec{}) {
			return Series{}, fmt.Errorf("sample %d at %s: %w", i, at.Format(time.RFC3339), ErrPropagation)
		}
		out.States = append(out.States, st)
		out.Epochs = append(out.Epochs, at.Sub(start).Seconds())
	}
	return out, nil
}

func validateRequest(req Request) error {
	switch {
	case req.Count < 2:
		return fmt.Errorf("count %d below 2: %w", req.Count, ErrInvalidRequest)
	case req.Count > MaxSamples:
		return fmt.Errorf("count %d above %d: %w", req.Count, MaxSamples, ErrInvalidRequest)
	case req.Step < time.Second:
		return fmt.Errorf("step %s below 1s: %w", req.Step, ErrInvalidRequest)
	case req.Start.IsZero():
		return fmt.Errorf("missing start time: %w", ErrInvalidRequest)
	}
	return nil
}

// ValidateTLE checks the fixed-column layout of a two-line element set.
func ValidateTLE(line1, line2 string) error {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if len(line1) != tleLineLength || len(line2) != tleLineLength {
		return fmt.Errorf("line lengths %d and %d, want %d: %w", len(line1), len(line2), tleLineLength, ErrInvalidTLE)
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("bad line numbers: %w", ErrInvalidTLE)
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("catalog numbers %q and %q differ: %w", line1[2:7], line2[2:7], ErrInvalidTLE)
	}
	return nil
}

// ChecksumOK reports whether the last column of line matches the modulo-10
// checksum of the first 68. Many published TLEs carry stale checksums, so
// callers decide whether a mismatch matters.
func ChecksumOK(line string) bool {
	line = strings.TrimRight(line, "\r\n ")
	if len(line) != tleLineLength {
		return false
	}
	last := line[tleLineLength-1]
	return last >= '0' && last <= '9' && int(last-'0') == Checksum(line)
}

// Checksum returns the modulo-10 TLE checksum of the first 68 columns.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < tleLineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parse guards go-satellite's parser, which panics on malformed fields.
func parse(line1, line2 string, g satellite.Gravity) (sat satellite.Satellite, err error) {
	if err := ValidateTLE(line1, line2); err != nil {
		return satellite.Satellite{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse: %v: %w", r, ErrInvalidTLE)
		}
	}()
	sat = satellite.TLEToSat(strings.TrimRight(line1, "\r\n "), strings.TrimRight(line2, "\r\n "), g)
	return sat, nil
}
