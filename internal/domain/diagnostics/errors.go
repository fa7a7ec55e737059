package diagnostics

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors. They are caller-correctable. All but ErrNonFinite are
// returned before any computation starts.
var (
	ErrInsufficientSeries = errors.New("insufficient series length")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrInvalidMu          = errors.New("invalid gravitational parameter")
	// ErrNonFinite means the input was well formed but its magnitudes
	// overflowed the diagnostics or the score to Inf or NaN.
	ErrNonFinite = errors.New("non-finite result")
)

// IsValidation reports whether err is one of this package's validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientSeries) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrInvalidMu) ||
		errors.Is(err, ErrNonFinite)
}

// CheckFinite returns ErrNonFinite naming the first of values that is Inf or
// NaN. names and values are paired by index.
func CheckFinite(names []string, values ...float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s=%v: %w", names[i], v, ErrNonFinite)
		}
	}
	return nil
}

// Code maps a validation error to its stable wire code, or "" for other
// errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientSeries):
		return "insufficient_series"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrInvalidMu):
		return "invalid_mu"
	case errors.Is(err, ErrNonFinite):
		return "non_finite_result"
	default:
		return ""
	}
}
