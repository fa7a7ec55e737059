package ephemeris

import "errors"

// Sentinel kinds for ephemeris errors.
var (
	ErrInvalidTLE     = errors.New("invalid tle")
	ErrInvalidRequest = errors.New("invalid propagation request")
	ErrPropagation    = errors.New("sgp4 propagation failed")
)
