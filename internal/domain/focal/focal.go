// Package focal reconstructs the geometric invariants and focal points of the
// osculating two-body conic from a single state vector.
package focal

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/numeric"
)

// ParabolicTolerance is the bound on |1/a| below which the orbit is treated
// as parabolic and the semi-major axis reported as +Inf.
const ParabolicTolerance = 1e-15

// Metrics are the derived conic invariants of one state.
//
// For a parabolic (or numerically near-parabolic) orbit Center, F1 and F2 are
// the zero vector. That value is a sentinel, not a focus at the origin;
// Degenerate is set so consumers can tell the two apart.
type Metrics struct {
	H             model.Vec // specific angular momentum r×v
	A             model.Vec // Laplace–Runge–Lenz vector v×h − μ·r/|r|
	E             float64   // eccentricity |A|/μ
	EHat          model.Vec // unit eccentricity direction, zero when |A| is negligible
	SemiMajorAxis float64   // +Inf when Degenerate
	Center        model.Vec // conic centre relative to the attracting focus
	F1            model.Vec
	F2            model.Vec
	Degenerate    bool
}

// Reconstruct maps one state and gravitational parameter mu to its focal
// metrics. It never fails: a near-zero position is absorbed by the epsilon
// norm, a near-zero eccentricity vector yields a zero direction and the
// parabolic case yields the zero sentinel.
func Reconstruct(s model.State, mu float64) Metrics {
	r, v := s.R, s.V

	h := r3.Cross(r, v)
	rmag := numeric.SafeNorm(r)
	lrl := r3.Sub(r3.Cross(v, h), r3.Scale(mu/rmag, r))

	m := Metrics{
		H:    h,
		A:    lrl,
		E:    numeric.SafeNorm(lrl) / mu,
		EHat: numeric.Unit(lrl),
	}

	// vis-viva: 1/a = 2/|r| − |v|²/μ
	invA := 2/rmag - r3.Dot(v, v)/mu
	if math.Abs(invA) < ParabolicTolerance {
		m.SemiMajorAxis = math.Inf(1)
		m.Degenerate = true
		return m
	}
	m.SemiMajorAxis = 1 / invA

	offset := r3.Scale(m.SemiMajorAxis*m.E, m.EHat)
	m.Center = r3.Scale(-1, offset)
	m.F1 = r3.Add(m.Center, offset)
	m.F2 = r3.Sub(m.Center, offset)
	return m
}
