package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("config: invalid")
	// ErrLoadConfig wraps failures reading the YAML file or FGOC_ variables.
	ErrLoadConfig = errors.New("config: load failed")
)
