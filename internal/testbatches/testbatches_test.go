package testbatches

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fgoc/internal/adapters/http/api"
	service "github.com/okian/fgoc/internal/app"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
	"github.com/okian/fgoc/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	log.SetOutput(io.Discard)
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
		cancel()
	})
	return srv
}

func TestGenerateSample(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		Convey("Then nominal series lie on a circular orbit", func() {
			s := generateSample(rand.New(rand.NewPCG(7, 7)), "n", 5, false)
			So(s.Perturbed, ShouldBeFalse)
			So(s.Series.Mu, ShouldEqual, model.EarthMu)
			So(s.Series.Epochs, ShouldResemble, []float64{0, 60, 120, 180, 240})

			r0 := norm(s.Series.States[0].R)
			So(r0, ShouldBeBetweenOrEqual, minRadius, minRadius+radiusRange)
			for _, st := range s.Series.States {
				So(norm(st.R), ShouldAlmostEqual, r0, 1e-6)
				So(norm(st.V), ShouldAlmostEqual, math.Sqrt(model.EarthMu/r0), 1e-9)
			}
		})

		Convey("Then the same stream yields the same series", func() {
			a := generateSample(rand.New(rand.NewPCG(1, 2)), "x", 4, true)
			b := generateSample(rand.New(rand.NewPCG(1, 2)), "x", 4, true)
			So(a, ShouldResemble, b)
		})

		Convey("Then perturbed series score far above nominal ones", func() {
			nominal := generateSample(rand.New(rand.NewPCG(3, 1)), "n", 5, false)
			perturbed := generateSample(rand.New(rand.NewPCG(3, 1)), "p", 5, true)

			nb, pb := nominal.batch(), perturbed.batch()
			nr, err := scoring.Evaluate(nb.States, nb.Mu, nb.Epochs, scoring.DefaultParams())
			So(err, ShouldBeNil)
			pr, err := scoring.Evaluate(pb.States, pb.Mu, pb.Epochs, scoring.DefaultParams())
			So(err, ShouldBeNil)

			So(nr.S, ShouldBeLessThan, 1e-6)
			So(pr.S, ShouldBeGreaterThan, 1.0)
			So(pr.Flag, ShouldBeTrue)
		})
	})
}

func TestGenerateSamples(t *testing.T) {
	Convey("Given a generation config", t, func() {
		ctx := context.Background()
		config := &Config{NumSeries: 25, StatesPerSeries: 3, Workers: 4, Seed: 9}

		Convey("When no series are perturbed", func() {
			stats := &Stats{}
			samples, err := generateSamples(ctx, config, stats)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 25)
			So(stats.SeriesGenerated, ShouldEqual, 25)
			So(stats.SeriesPerturbed, ShouldEqual, 0)

			Convey("Then every series has a unique ID", func() {
				seen := map[string]bool{}
				for _, s := range samples {
					So(s.Series.ID, ShouldHaveLength, 36)
					So(seen[s.Series.ID], ShouldBeFalse)
					seen[s.Series.ID] = true
					So(s.Series.States, ShouldHaveLength, 3)
				}
			})
		})

		Convey("When every series is perturbed", func() {
			config.PerturbedRatio = 1
			stats := &Stats{}
			samples, err := generateSamples(ctx, config, stats)
			So(err, ShouldBeNil)
			So(stats.SeriesPerturbed, ShouldEqual, len(samples))
		})

		Convey("When there are more workers than series", func() {
			config.NumSeries = 2
			config.Workers = 16
			samples, err := generateSamples(ctx, config, &Stats{})
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 2)
		})

		Convey("Then invalid sizes are rejected", func() {
			config.NumSeries = 0
			_, err := generateSamples(ctx, config, &Stats{})
			So(err, ShouldNotBeNil)

			config.NumSeries = 3
			config.StatesPerSeries = 1
			_, err = generateSamples(ctx, config, &Stats{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestVerifyAnomalyOrder(t *testing.T) {
	Convey("Given anomaly rankings", t, func() {
		Convey("Then a descending list with consecutive ranks passes", func() {
			So(verifyAnomalyOrder([]Record{{Rank: 1, S: 3}, {Rank: 2, S: 2}, {Rank: 3, S: 2}}), ShouldBeNil)
			So(verifyAnomalyOrder(nil), ShouldBeNil)
		})

		Convey("Then an unsorted list fails", func() {
			So(verifyAnomalyOrder([]Record{{Rank: 1, S: 1}, {Rank: 2, S: 2}}), ShouldNotBeNil)
		})

		Convey("Then a rank gap fails", func() {
			So(verifyAnomalyOrder([]Record{{Rank: 1, S: 2}, {Rank: 3, S: 1}}), ShouldNotBeNil)
		})
	})
}

func TestVerifyResults(t *testing.T) {
	Convey("Given generated samples and matching records", t, func() {
		samples := []Sample{
			generateSample(rand.New(rand.NewPCG(5, 1)), "n", 4, false),
			generateSample(rand.New(rand.NewPCG(5, 2)), "p", 4, true),
		}
		records := make([]Record, len(samples))
		for i := range samples {
			b := samples[i].batch()
			res, err := scoring.Evaluate(b.States, b.Mu, b.Epochs, scoring.DefaultParams())
			So(err, ShouldBeNil)
			records[i] = Record{ID: b.ID, Status: statusScored, S: res.S, FDR: res.Diagnostics.FDR, FSBI: res.Diagnostics.FSBI, Flag: res.Flag}
		}

		Convey("Then verification passes", func() {
			stats := &Stats{}
			So(verifyResults(context.Background(), &Config{}, samples, records, nil, stats), ShouldBeNil)
			So(stats.MeanScorePerturbed, ShouldBeGreaterThan, stats.MeanScoreNominal)
			So(stats.FlaggedPerturbed, ShouldEqual, 1)
		})

		Convey("Then a tampered diagnostic is reported", func() {
			records[1].FDR *= 2
			err := verifyResults(context.Background(), &Config{}, samples, records, nil, &Stats{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disagree")
		})

		Convey("Then inverted scores fail the separation check", func() {
			samples[0].Perturbed, samples[1].Perturbed = true, false
			err := verifyResults(context.Background(), &Config{}, samples, records, nil, &Stats{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "did not score higher")
		})

		Convey("Then no scored records is an error", func() {
			err := verifyResults(context.Background(), &Config{}, samples, make([]Record, 2), nil, &Stats{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSubmitSingleSeries(t *testing.T) {
	Convey("Given a stub batch endpoint", t, func() {
		status := http.StatusAccepted
		body := `{"id":"x","status":"accepted"}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()
		client := newHTTPClient(time.Second)
		series := &Series{ID: "x"}

		Convey("Then 202 is accepted", func() {
			So(submitSingleSeries(context.Background(), client, srv.URL, series), ShouldEqual, resultAccepted)
		})

		Convey("Then 200 with duplicate is a duplicate", func() {
			status, body = http.StatusOK, `{"id":"x","status":"duplicate","duplicate":true}`
			So(submitSingleSeries(context.Background(), client, srv.URL, series), ShouldEqual, resultDuplicate)
		})

		Convey("Then backpressure is a failure", func() {
			status, body = http.StatusTooManyRequests, `{"code":"backpressure"}`
			So(submitSingleSeries(context.Background(), client, srv.URL, series), ShouldEqual, resultFailed)
		})
	})
}

func TestCheckServiceHealth(t *testing.T) {
	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Then the health check fails", func() {
			err := checkServiceHealth(context.Background(), &Config{BaseURL: srv.URL, Timeout: time.Second})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "503")
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newServer(t)
		output := filepath.Join(t.TempDir(), "out", "series.json")
		config := &Config{
			BaseURL:         srv.URL,
			NumSeries:       40,
			PerturbedRatio:  0.5,
			StatesPerSeries: 4,
			TopN:            10,
			Workers:         4,
			Seed:            42,
			Timeout:         5 * time.Second,
			PollTimeout:     10 * time.Second,
			PollInterval:    10 * time.Millisecond,
			OutputFile:      output,
		}

		Convey("When the full test runs", func() {
			err := Run(context.Background(), config)

			Convey("Then it succeeds and saves the series", func() {
				So(err, ShouldBeNil)

				data, err := os.ReadFile(output)
				So(err, ShouldBeNil)
				var saved []Sample
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 40)
			})
		})

		Convey("When polling for an unknown record", func() {
			config.PollTimeout = 30 * time.Millisecond
			_, err := pollRecord(context.Background(), newHTTPClient(time.Second), config, "00000000-0000-0000-0000-000000000000")

			Convey("Then it times out", func() {
				So(errors.Is(err, errRecordTimeout), ShouldBeTrue)
			})
		})
	})
}
