package scenario

import "errors"

var (
	// ErrNotFound is returned for an unknown scenario id.
	ErrNotFound = errors.New("scenario not found")

	// ErrBaseImmutable is returned when a caller tries to update or delete
	// the base scenario.
	ErrBaseImmutable = errors.New("base scenario cannot be modified")

	// ErrInvalidConfig is returned for malformed sweep, Monte Carlo or
	// standard-scenario requests, before any calculation runs.
	ErrInvalidConfig = errors.New("invalid configuration")
)
