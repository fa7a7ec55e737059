package testbatches

import "time"

// Config holds configuration for the batch load test.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumSeries       int           // Number of series to generate
	PerturbedRatio  float64       // Fraction of series carrying injected inconsistencies
	StatesPerSeries int           // Number of states per series
	TopN            int           // Number of anomalies to fetch
	Workers         int           // Number of concurrent workers
	Seed            uint64        // Seed for the series generator
	Timeout         time.Duration // HTTP request timeout
	PollTimeout     time.Duration // How long to wait for a record to be scored
	PollInterval    time.Duration // Delay between record polls
	OutputFile      string        // Output file for generated series
	LogFile         string        // Log file for test output
	Verbose         bool          // Enable verbose logging
}

// State is one Cartesian state on the wire.
type State struct {
	R [3]float64 `json:"r"`
	V [3]float64 `json:"v"`
}

// Series is the body posted to /v1/batches.
type Series struct {
	ID     string    `json:"id"`
	Mu     float64   `json:"mu"`
	States []State   `json:"states"`
	Epochs []float64 `json:"epochs"`
}

// Sample is a generated series together with its ground truth.
type Sample struct {
	Series    Series `json:"series"`
	Perturbed bool   `json:"perturbed"`
}

// Record is the stored scoring result returned by the service.
type Record struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Rank      int     `json:"rank"`
	K         int     `json:"k"`
	S         float64 `json:"s"`
	P         float64 `json:"p"`
	Flag      bool    `json:"flag"`
	FDR       float64 `json:"fdr"`
	FSBI      float64 `json:"fsbi"`
	ErrorCode string  `json:"error_code"`
}

// AckResponse represents the response from batch submission.
type AckResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds test statistics.
type Stats struct {
	SeriesGenerated    int
	SeriesPerturbed    int
	SeriesSubmitted    int
	SeriesAccepted     int
	SeriesDuplicate    int
	SeriesFailed       int
	RecordsRetrieved   int
	RecordsMissing     int
	AnomalyEntries     int
	FlaggedPerturbed   int
	FlaggedNominal     int
	MeanScorePerturbed float64
	MeanScoreNominal   float64
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
