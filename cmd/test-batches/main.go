package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/fgoc/internal/testbatches"
)

// Default configuration constants.
const (
	defaultNumSeries      = 1000
	defaultPerturbedRatio = 0.2
	defaultStates         = 5
	defaultTopN           = 50
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultTestTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSeries   = flag.Int("series", defaultNumSeries, "Number of series to generate and submit")
		perturbed   = flag.Float64("perturbed", defaultPerturbedRatio, "Fraction of series with injected inconsistencies")
		states      = flag.Int("states", defaultStates, "Number of states per series")
		topN        = flag.Int("top", defaultTopN, "Number of anomalies to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		seed        = flag.Uint64("seed", 1, "Generator seed")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout = flag.Duration("poll-timeout", testbatches.DefaultPollTimeout, "How long to wait for each record to be scored")
		outputFile  = flag.String("output", "", "Output file for generated series")
		logFile     = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testbatches.ShowHelp()
		return
	}

	if err := testbatches.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testbatches.Config{
		BaseURL:         *baseURL,
		NumSeries:       *numSeries,
		PerturbedRatio:  *perturbed,
		StatesPerSeries: *states,
		TopN:            *topN,
		Workers:         *workers,
		Seed:            *seed,
		Timeout:         *timeout,
		PollTimeout:     *pollTimeout,
		OutputFile:      *outputFile,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	if err := testbatches.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
