package rate

import "errors"

var (
	// ErrRateLimited is returned when a window budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrCounterUnavailable is returned when the counter backend fails.
	ErrCounterUnavailable = errors.New("rate counter unavailable")
)
