// Command fgoc-eval scores state series offline and prints the focal
// diagnostics for each of them.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/okian/fgoc/internal/config"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
	"github.com/okian/fgoc/pkg/logger"
)

var errSeriesFailed = errors.New("series failed to score")

func main() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logger.Get().Error(context.Background(), "fgoc-eval failed", logger.Error(err))
		}
		os.Exit(1)
	}
}

// stateJSON is one Cartesian state in the series wire shape.
type stateJSON struct {
	R [3]float64 `json:"r"`
	V [3]float64 `json:"v"`
}

// seriesJSON accepts both a bare series and the {"series":..., "perturbed":...}
// samples written by test-batches.
type seriesJSON struct {
	ID        string      `json:"id"`
	Mu        float64     `json:"mu"`
	States    []stateJSON `json:"states"`
	Epochs    []float64   `json:"epochs"`
	Series    *seriesJSON `json:"series"`
	Perturbed *bool       `json:"perturbed"`
}

func (s *seriesJSON) batch() (model.Batch, *bool) {
	src := s
	if s.Series != nil {
		src = s.Series
	}
	b := model.Batch{
		ID:     src.ID,
		Mu:     src.Mu,
		States: make([]model.State, len(src.States)),
		Epochs: src.Epochs,
		Source: "file",
	}
	for i, st := range src.States {
		b.States[i] = model.NewState(st.R, st.V)
	}
	return b, s.Perturbed
}

// evalResult is one output row.
type evalResult struct {
	ID              string  `json:"id"`
	K               int     `json:"k"`
	Flag            bool    `json:"flag"`
	S               float64 `json:"s"`
	P               float64 `json:"p"`
	FDR             float64 `json:"fdr"`
	FSBI            float64 `json:"fsbi"`
	TermSep         float64 `json:"term_sep"`
	TermCM          float64 `json:"term_cm"`
	DegenerateCount int     `json:"degenerate_count"`
	Perturbed       *bool   `json:"perturbed,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("fgoc-eval", flag.ContinueOnError)
	var (
		file      = fs.String("file", "", "JSON file with a series or an array of series")
		demo      = fs.Bool("demo", false, "Score the built-in nominal and anomalous demo series")
		mu        = fs.Float64("mu", cfg.Mu, "Gravitational parameter in km^3/s^2 for series without one")
		alpha1    = fs.Float64("alpha1", cfg.Alpha1, "Weight of the focal drift rate")
		alpha2    = fs.Float64("alpha2", cfg.Alpha2, "Weight of the focal separation bias index")
		tau       = fs.Float64("tau", cfg.Tau, "Logistic offset")
		threshold = fs.Float64("threshold", cfg.FlagThreshold, "Flag threshold on P")
		format    = fs.String("format", "text", "Output format: text or json")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mu <= 0 {
		return fmt.Errorf("mu must be positive, got %v", *mu)
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}

	var inputs []seriesJSON
	switch {
	case *demo:
		inputs = demoInputs()
	case *file != "":
		inputs, err = readSeriesFile(*file)
		if err != nil {
			return err
		}
	default:
		fs.Usage()
		return errors.New("one of -file or -demo is required")
	}

	params := scoring.Params{Alpha1: *alpha1, Alpha2: *alpha2, Tau: *tau, FlagThreshold: *threshold}
	results, failed := evaluate(ctx, inputs, *mu, params)

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	} else if err := writeTable(stdout, results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d: %w", failed, len(results), errSeriesFailed)
	}
	return nil
}

// evaluate scores every input and returns the rows and the number of
// series that could not be scored.
func evaluate(ctx context.Context, inputs []seriesJSON, mu float64, params scoring.Params) ([]evalResult, int) {
	log := logger.Named("eval")
	results := make([]evalResult, len(inputs))
	failed := 0
	for i := range inputs {
		b, perturbed := inputs[i].batch()
		if b.ID == "" {
			b.ID = fmt.Sprintf("series-%d", i)
		}
		if b.Mu == 0 {
			b.Mu = mu
		}
		row := evalResult{ID: b.ID, K: b.Len(), Perturbed: perturbed}

		res, err := scoring.Evaluate(b.States, b.Mu, b.Epochs, params)
		if err != nil {
			failed++
			row.Error = err.Error()
			log.Warn(ctx, "series not scored", logger.String("id", b.ID), logger.Error(err))
		} else {
			row.Flag = res.Flag
			row.S = res.S
			row.P = res.P
			row.FDR = res.Diagnostics.FDR
			row.FSBI = res.Diagnostics.FSBI
			row.TermSep = res.Diagnostics.TermSep
			row.TermCM = res.Diagnostics.TermCM
			row.DegenerateCount = res.Diagnostics.DegenerateCount
		}
		results[i] = row
	}
	return results, failed
}

func demoInputs() []seriesJSON {
	batches := []model.Batch{scoring.DemoNominalSeries(), scoring.DemoAnomalousSeries()}
	out := make([]seriesJSON, len(batches))
	for i, b := range batches {
		s := seriesJSON{ID: b.ID, Mu: b.Mu, Epochs: b.Epochs, States: make([]stateJSON, len(b.States))}
		for j, st := range b.States {
			s.States[j] = stateJSON{
				R: [3]float64{st.R.X, st.R.Y, st.R.Z},
				V: [3]float64{st.V.X, st.V.Y, st.V.Z},
			}
		}
		out[i] = s
	}
	return out
}

// readSeriesFile decodes either a single series object or an array of them.
func readSeriesFile(path string) ([]seriesJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []seriesJSON
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return many, nil
	}
	var one seriesJSON
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []seriesJSON{one}, nil
}

func writeTable(w io.Writer, results []evalResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tK\tFLAG\tS\tP\tFDR\tFSBI\tTERM_SEP\tTERM_CM\tDEGENERATE\tNOTE")
	for _, r := range results {
		note := r.Error
		if r.Perturbed != nil && note == "" {
			note = "nominal"
			if *r.Perturbed {
				note = "perturbed"
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%t\t%.6g\t%.6f\t%.6g\t%.6g\t%.6g\t%.6g\t%d\t%s\n",
			r.ID, r.K, r.Flag, r.S, r.P, r.FDR, r.FSBI, r.TermSep, r.TermCM, r.DegenerateCount,
			strings.TrimSpace(note))
	}
	return tw.Flush()
}
