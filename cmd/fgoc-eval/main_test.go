package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fgoc/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunDemo(t *testing.T) {
	Convey("Given the demo series", t, func() {
		var out bytes.Buffer

		Convey("When rendered as JSON", func() {
			err := run(context.Background(), []string{"-demo", "-format", "json"}, &out)
			So(err, ShouldBeNil)

			var rows []evalResult
			So(json.Unmarshal(out.Bytes(), &rows), ShouldBeNil)
			So(rows, ShouldHaveLength, 2)

			Convey("Then the nominal series matches the reference score", func() {
				So(rows[0].ID, ShouldEqual, "demo-nominal")
				So(rows[0].K, ShouldEqual, 3)
				So(rows[0].FDR, ShouldAlmostEqual, 0.035795538356800535, 1e-9)
				So(rows[0].FSBI, ShouldAlmostEqual, 3.9604105527630002, 1e-9)
				So(rows[0].S, ShouldAlmostEqual, 3.996206091119801, 1e-9)
				So(rows[0].P, ShouldAlmostEqual, 0.9819466566525599, 1e-9)
			})

			Convey("Then the anomalous series scores higher", func() {
				So(rows[1].ID, ShouldEqual, "demo-anomalous")
				So(rows[1].K, ShouldEqual, 4)
				So(rows[1].S, ShouldBeGreaterThan, rows[0].S)
				So(rows[1].Flag, ShouldBeTrue)
			})
		})

		Convey("When tau is raised above the nominal score", func() {
			err := run(context.Background(), []string{"-demo", "-format", "json", "-tau", "10"}, &out)
			So(err, ShouldBeNil)

			var rows []evalResult
			So(json.Unmarshal(out.Bytes(), &rows), ShouldBeNil)
			So(rows[0].Flag, ShouldBeFalse)
		})

		Convey("When rendered as a table", func() {
			So(run(context.Background(), []string{"-demo"}, &out), ShouldBeNil)
			So(out.String(), ShouldStartWith, "ID")
			So(out.String(), ShouldContainSubstring, "demo-anomalous")
			So(out.String(), ShouldContainSubstring, "TERM_SEP")
		})
	})
}

func TestRunFile(t *testing.T) {
	Convey("Given series files", t, func() {
		var out bytes.Buffer

		Convey("When the file holds a single series without mu", func() {
			path := writeFile(t, `{"id": "one", "states": [
				{"r": [7000,0,0], "v": [0,7.5,0]},
				{"r": [7002,1,0], "v": [0,7.5,0]},
				{"r": [7004,2,0], "v": [0,7.5,0]}], "epochs": [0,60,120]}`)
			err := run(context.Background(), []string{"-file", path, "-format", "json"}, &out)

			Convey("Then the configured mu is used", func() {
				So(err, ShouldBeNil)
				var rows []evalResult
				So(json.Unmarshal(out.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].S, ShouldAlmostEqual, 3.996206091119801, 1e-9)
			})
		})

		Convey("When the file holds samples written by the batch tester", func() {
			path := writeFile(t, `[{"series": {"id": "s1", "mu": 398600.4418, "states": [
				{"r": [7000,0,0], "v": [0,7.5,0]},
				{"r": [7002,1,0], "v": [0,7.5,0]}], "epochs": [0,60]}, "perturbed": true}]`)
			err := run(context.Background(), []string{"-file", path, "-format", "json"}, &out)

			Convey("Then the ground truth is echoed", func() {
				So(err, ShouldBeNil)
				var rows []evalResult
				So(json.Unmarshal(out.Bytes(), &rows), ShouldBeNil)
				So(rows[0].ID, ShouldEqual, "s1")
				So(rows[0].Perturbed, ShouldNotBeNil)
				So(*rows[0].Perturbed, ShouldBeTrue)
			})
		})

		Convey("When a series is too short", func() {
			path := writeFile(t, `[{"states": [{"r": [7000,0,0], "v": [0,7.5,0]}]}]`)
			err := run(context.Background(), []string{"-file", path, "-format", "json"}, &out)

			Convey("Then the row carries the error and the run fails", func() {
				So(errors.Is(err, errSeriesFailed), ShouldBeTrue)
				var rows []evalResult
				So(json.Unmarshal(out.Bytes(), &rows), ShouldBeNil)
				So(rows[0].ID, ShouldEqual, "series-0")
				So(rows[0].Error, ShouldNotBeEmpty)
			})
		})

		Convey("When the file is missing", func() {
			err := run(context.Background(), []string{"-file", filepath.Join(t.TempDir(), "nope.json")}, &out)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRunFlags(t *testing.T) {
	Convey("Given invalid flags", t, func() {
		var out bytes.Buffer

		Convey("Then no input is an error", func() {
			So(run(context.Background(), nil, &out), ShouldNotBeNil)
		})

		Convey("Then an unknown format is an error", func() {
			So(run(context.Background(), []string{"-demo", "-format", "xml"}, &out), ShouldNotBeNil)
		})

		Convey("Then a non-positive mu is an error", func() {
			So(run(context.Background(), []string{"-demo", "-mu", "0"}, &out), ShouldNotBeNil)
		})
	})
}
