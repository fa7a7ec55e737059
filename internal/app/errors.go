package service

import "errors"

var (
	// ErrNotStarted is returned by asynchronous operations before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure is returned when the batch queue is full.
	ErrBackpressure = errors.New("queue full")
)
