package idcache

import "fmt"

// CacheUnavailableError indicates the cache file is missing or cannot be
// trusted. Feature builds treat it as fatal: without the base mapping they
// cannot guarantee non-colliding ids.
type CacheUnavailableError struct {
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *CacheUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("id cache %s unavailable: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("id cache %s unavailable: %s", e.Path, e.Reason)
}

// Unwrap allows error unwrapping
func (e *CacheUnavailableError) Unwrap() error {
	return e.Err
}

// ConflictError is returned by Put when an entry would break the one-to-one
// mapping between paths and ids.
type ConflictError struct {
	Path       string
	ID         int
	ExistingID int    // id already recorded for Path, or -1
	Owner      string // path already holding ID, or ""
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("id %d for %q already assigned to %q", e.ID, e.Path, e.Owner)
	}
	return fmt.Sprintf("path %q already cached with id %d, refusing %d", e.Path, e.ExistingID, e.ID)
}
