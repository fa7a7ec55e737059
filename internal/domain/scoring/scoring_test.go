package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	scoring "github.com/okian/fgoc/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func nominal() []model.State {
	return scoring.DemoNominalSeries().States
}

func perturbed() []model.State {
	return []model.State{
		model.NewState([3]float64{7000, 0, 0}, [3]float64{0, 7.5, 0}),
		model.NewState([3]float64{7030, 40, 5}, [3]float64{0.1, 7.4, 0.05}),
		model.NewState([3]float64{7060, 80, 10}, [3]float64{0.2, 7.3, 0.1}),
	}
}

func TestCombine(t *testing.T) {
	Convey("Given the default parameters", t, func() {
		p := scoring.DefaultParams()

		Convey("When both indices are zero", func() {
			out := scoring.Combine(0, 0, p)

			Convey("Then P sits on the logistic midpoint and the flag is raised", func() {
				So(out.S, ShouldEqual, 0)
				So(out.P, ShouldEqual, 0.5)
				So(out.Flag, ShouldBeTrue)
			})
		})

		Convey("When the indices are weighted", func() {
			p.Alpha1, p.Alpha2 = 2, 0.5
			out := scoring.Combine(3, 4, p)

			Convey("Then S is the weighted sum", func() {
				So(out.S, ShouldEqual, 8)
			})
		})
	})

	Convey("Given a large threshold offset", t, func() {
		p := scoring.Params{Alpha1: 1, Alpha2: 1, Tau: 10, FlagThreshold: 0.5}

		Convey("Then a small S stays below the threshold", func() {
			out := scoring.Combine(0.5, 3.5, p)
			So(out.P, ShouldBeLessThan, 0.5)
			So(out.Flag, ShouldBeFalse)
		})

		Convey("Then a score above tau is flagged", func() {
			out := scoring.Combine(1, 10, p)
			So(out.P, ShouldBeGreaterThan, 0.5)
			So(out.Flag, ShouldBeTrue)
		})
	})

	Convey("Given extreme scores", t, func() {
		p := scoring.DefaultParams()

		Convey("Then P stays inside the unit interval", func() {
			for _, s := range []float64{-1e6, -50, 0, 50, 1e6} {
				out := scoring.Combine(s, 0, p)
				So(out.P, ShouldBeBetweenOrEqual, 0, 1)
				So(math.IsNaN(out.P), ShouldBeFalse)
			}
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given the nominal LEO series one minute apart", t, func() {
		res, err := scoring.Evaluate(nominal(), model.EarthMu, []float64{0, 60, 120}, scoring.DefaultParams())

		Convey("Then it matches the reference values", func() {
			So(err, ShouldBeNil)
			So(res.Diagnostics.FDR, ShouldAlmostEqual, 0.035795538356800535, 1e-9)
			So(res.Diagnostics.FSBI, ShouldAlmostEqual, 3.9604105527630002, 1e-9)
			So(res.S, ShouldAlmostEqual, 3.996206091119801, 1e-9)
			So(res.P, ShouldAlmostEqual, 0.9819466566525599, 1e-9)
			So(res.P, ShouldBeBetweenOrEqual, 0, 1)
			So(res.Diagnostics.FDR, ShouldBeGreaterThanOrEqualTo, 0)
			So(res.Diagnostics.FSBI, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("Then the parameters used are echoed back", func() {
			So(res.Params, ShouldResemble, scoring.DefaultParams())
		})
	})

	Convey("Given the nominal series without epochs", t, func() {
		res, err := scoring.Evaluate(nominal(), model.EarthMu, nil, scoring.DefaultParams())

		Convey("Then P is still a probability", func() {
			So(err, ShouldBeNil)
			So(res.P, ShouldBeBetweenOrEqual, 0, 1)
		})
	})

	Convey("Given nominal and perturbed series with tau=10", t, func() {
		p := scoring.Params{Alpha1: 1, Alpha2: 1, Tau: 10, FlagThreshold: 0.5}
		epochs := []float64{0, 60, 120}

		nom, err := scoring.Evaluate(nominal(), model.EarthMu, epochs, p)
		So(err, ShouldBeNil)
		pert, err := scoring.Evaluate(perturbed(), model.EarthMu, epochs, p)
		So(err, ShouldBeNil)

		Convey("Then only the perturbed series is flagged", func() {
			So(nom.Flag, ShouldBeFalse)
			So(pert.Flag, ShouldBeTrue)
			So(pert.S, ShouldBeGreaterThan, nom.S)
			So(pert.S, ShouldAlmostEqual, 377.39523739722074, 1e-6)
		})
	})

	Convey("Given the anomalous demonstration series", t, func() {
		b := scoring.DemoAnomalousSeries()
		res, err := scoring.Evaluate(b.States, b.Mu, b.Epochs, scoring.DefaultParams())

		Convey("Then it is flagged with saturated probability", func() {
			So(err, ShouldBeNil)
			So(res.Flag, ShouldBeTrue)
			So(res.P, ShouldEqual, 1.0)
			So(res.Diagnostics.FDR, ShouldAlmostEqual, 6.883238596194808, 1e-6)
			So(res.Diagnostics.FSBI, ShouldAlmostEqual, 1230.1916229783749, 1e-6)
			So(res.Diagnostics.TermSep, ShouldAlmostEqual, 818.1605642886011, 1e-6)
			So(res.Diagnostics.TermCM, ShouldAlmostEqual, 412.03105868977383, 1e-6)
		})
	})

	Convey("Given invalid input", t, func() {
		_, err := scoring.Evaluate(nominal()[:1], model.EarthMu, nil, scoring.DefaultParams())

		Convey("Then the diagnostics error is surfaced", func() {
			So(errors.Is(err, diagnostics.ErrInsufficientSeries), ShouldBeTrue)
		})
	})

	Convey("Given weights large enough to overflow S", t, func() {
		p := scoring.Params{Alpha1: 1e308, Alpha2: 1e308, FlagThreshold: 0.5}
		_, err := scoring.Evaluate(nominal(), model.EarthMu, []float64{0, 60, 120}, p)

		Convey("Then the result is rejected as non-finite", func() {
			So(errors.Is(err, diagnostics.ErrNonFinite), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "s=+Inf")
		})
	})

	Convey("Given a result with a NaN diagnostic", t, func() {
		res, err := scoring.Evaluate(nominal(), model.EarthMu, []float64{0, 60, 120}, scoring.DefaultParams())
		So(err, ShouldBeNil)
		So(res.Check(), ShouldBeNil)
		res.Diagnostics.FSBI = math.NaN()

		Convey("Then Check names the field", func() {
			err := res.Check()
			So(errors.Is(err, diagnostics.ErrNonFinite), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "fsbi=NaN")
		})
	})

	Convey("Given repeated evaluation of the same input", t, func() {
		a, _ := scoring.Evaluate(perturbed(), model.EarthMu, []float64{0, 60, 120}, scoring.DefaultParams())
		b, _ := scoring.Evaluate(perturbed(), model.EarthMu, []float64{0, 60, 120}, scoring.DefaultParams())

		Convey("Then the outcomes are bit-identical", func() {
			So(a.Outcome, ShouldResemble, b.Outcome)
		})
	})
}

func TestFocalScorer_Score(t *testing.T) {
	Convey("Given a focal scorer with tau=10", t, func() {
		scorer := scoring.NewFocalScorer(
			scoring.WithParams(scoring.Params{Alpha1: 1, Alpha2: 1, Tau: 10, FlagThreshold: 0.5}),
		)

		Convey("When scoring an input without mu", func() {
			res, err := scorer.Score(context.Background(), scoring.Input{
				SeriesID: "sat-1",
				States:   nominal(),
				Epochs:   []float64{0, 60, 120},
			})

			Convey("Then the Earth default is used", func() {
				So(err, ShouldBeNil)
				So(scorer.Mu(), ShouldEqual, model.EarthMu)
				So(res.SeriesID, ShouldEqual, "sat-1")
				So(res.Flag, ShouldBeFalse)
			})
		})

		Convey("When the input overrides the parameters", func() {
			p := scoring.DefaultParams()
			res, err := scorer.Score(context.Background(), scoring.Input{
				SeriesID: "sat-2",
				States:   nominal(),
				Epochs:   []float64{0, 60, 120},
				Params:   &p,
			})

			Convey("Then the override wins", func() {
				So(err, ShouldBeNil)
				So(res.Params.Tau, ShouldEqual, 0)
				So(res.Flag, ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			_, err := scorer.Score(context.Background(), scoring.Input{
				SeriesID: "bad",
				States:   nominal(),
				Epochs:   []float64{0},
			})

			Convey("Then a wrapped validation error is returned", func() {
				So(errors.Is(err, diagnostics.ErrLengthMismatch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "bad")
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := scorer.Score(ctx, scoring.Input{SeriesID: "x", States: nominal()})

			Convey("Then it returns the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given a scorer with a custom default mu", t, func() {
		scorer := scoring.NewFocalScorer(scoring.WithDefaultMu(1e6), scoring.WithDefaultMu(-5))

		Convey("Then non-positive overrides are ignored", func() {
			So(scorer.Mu(), ShouldEqual, 1e6)
		})
	})

	Convey("Given a batch", t, func() {
		b := scoring.DemoAnomalousSeries()
		in := scoring.InputFromBatch(&b)

		Convey("Then it maps onto scorer input", func() {
			So(in.SeriesID, ShouldEqual, b.ID)
			So(len(in.States), ShouldEqual, 4)
			So(in.Mu, ShouldEqual, model.EarthMu)
		})
	})
}
