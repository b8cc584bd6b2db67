package batch

import "errors"

// ErrEmptyInput is returned when a scenario file holds no scenarios.
var ErrEmptyInput = errors.New("no scenarios in input")
