package testbatches

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
	StatusNotFound = 404
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultPollTimeout   = 30 * time.Second
	DefaultPollInterval  = 50 * time.Millisecond
	PercentageMultiplier = 100
)
