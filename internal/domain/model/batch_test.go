package model_test

import (
	"testing"

	model "github.com/okian/fgoc/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewState(t *testing.T) {
	convey.Convey("Given component arrays", t, func() {
		s := model.NewState([3]float64{7000, 1, 2}, [3]float64{0, 7.5, 0.1})

		convey.Convey("Then they map onto the position and velocity vectors", func() {
			convey.So(s.R, convey.ShouldResemble, model.Vec{X: 7000, Y: 1, Z: 2})
			convey.So(s.V, convey.ShouldResemble, model.Vec{X: 0, Y: 7.5, Z: 0.1})
		})
	})
}

func TestBatch(t *testing.T) {
	convey.Convey("Given a batch with three states", t, func() {
		b := model.Batch{
			ID: "batch-1",
			Mu: model.EarthMu,
			States: []model.State{
				model.NewState([3]float64{7000, 0, 0}, [3]float64{0, 7.5, 0}),
				model.NewState([3]float64{7002, 1, 0}, [3]float64{0, 7.5, 0}),
				model.NewState([3]float64{7004, 2, 0}, [3]float64{0, 7.5, 0}),
			},
		}

		convey.Convey("Then Len reports the state count", func() {
			convey.So(b.Len(), convey.ShouldEqual, 3)
		})

		convey.Convey("And a nil epoch slice means unit spacing", func() {
			convey.So(b.Epochs, convey.ShouldBeNil)
			convey.So(b.Params, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given the default score params", t, func() {
		p := model.DefaultScoreParams()

		convey.Convey("Then they match the documented defaults", func() {
			convey.So(p.Alpha1, convey.ShouldEqual, 1.0)
			convey.So(p.Alpha2, convey.ShouldEqual, 1.0)
			convey.So(p.Tau, convey.ShouldEqual, 0.0)
			convey.So(p.FlagThreshold, convey.ShouldEqual, 0.5)
		})
	})
}
