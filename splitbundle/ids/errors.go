package ids

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPath is returned when the bundler hands over an empty module path
	ErrEmptyPath = errors.New("empty module path")

	// ErrEntryAlreadyAdopted is returned when AdoptEntry runs a second time
	ErrEntryAlreadyAdopted = errors.New("entry module already adopted")

	// ErrEntryKeyRequired is returned when an entry module is named without
	// the cache key its id is registered under
	ErrEntryKeyRequired = errors.New("entry module needs an entry key")
)

// RangeCollisionError indicates that base ids reached the feature offset, so
// base and feature-local ids could no longer be told apart.
type RangeCollisionError struct {
	Offset int
	ID     int
	Path   string
}

// Error implements the error interface
func (e *RangeCollisionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("base id %d for %q reaches feature offset %d", e.ID, e.Path, e.Offset)
	}
	return fmt.Sprintf("cached id %d reaches feature offset %d", e.ID, e.Offset)
}

// AllocationError wraps a failure to persist or look up an id for a path.
type AllocationError struct {
	Path         string
	WrappedError error
}

// Error implements the error interface
func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate id for %q: %v", e.Path, e.WrappedError)
}

// Unwrap allows error unwrapping
func (e *AllocationError) Unwrap() error {
	return e.WrappedError
}
