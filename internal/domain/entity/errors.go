package entity

import "errors"

var (
	// ErrFlightNotFound is returned when no flight matches an id or code
	ErrFlightNotFound = errors.New("flight not found")

	// ErrInvalidShortCode is returned for codes that are not all digits
	ErrInvalidShortCode = errors.New("invalid short code")

	// ErrKeyspaceExhausted means the retry budget was spent without finding
	// a free code. Callers should widen the code width.
	ErrKeyspaceExhausted = errors.New("short code keyspace exhausted")

	// ErrWriteConflict is returned by stores when a commit would violate the
	// short code uniqueness constraint.
	ErrWriteConflict = errors.New("short code write conflict")

	// ErrCodeAlreadyAssigned is returned when a conditional assignment finds
	// that the flight's code changed since it was read.
	ErrCodeAlreadyAssigned = errors.New("flight short code already assigned")

	// ErrAllocationFailed means every allocate-and-commit retry conflicted
	ErrAllocationFailed = errors.New("short code allocation failed")
)

// ErrInvalidFlight is returned when flight input fails validation
var ErrInvalidFlight = errors.New("invalid flight")
