package shortarc

import "errors"

// Sentinel kinds for short-arc classification errors.
var (
	ErrTooFewDetections = errors.New("short arc requires at least 2 detections")
	ErrLengthMismatch   = errors.New("ra, dec and mjd lengths differ")
)
