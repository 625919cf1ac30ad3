package slots

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a coach has no availability profile, or
	// when a point query names a slot that was never generated.
	ErrNotFound = errors.New("slots: not found")
	// ErrInvalidParameter wraps bad date ranges and durations.
	ErrInvalidParameter = errors.New("slots: invalid parameter")
	// ErrAdapterFailure marks I/O failures of the availability or session sources.
	ErrAdapterFailure = errors.New("slots: adapter failure")
)

// ReasonNoAvailability explains a point query that matched no candidate.
const ReasonNoAvailability = "No availability configured for this time"

// AdapterError carries the failing source operation and its original error.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("slots: %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAdapterFailure) match any AdapterError.
func (e *AdapterError) Is(target error) bool {
	return target == ErrAdapterFailure
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
