package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrResetWhileLoading is returned by Reset when a bundle is mid-load,
	// and delivered to waiters dropped by ForceReset.
	ErrResetWhileLoading = errors.New("reset requested while bundles are loading")

	// ErrEmptyBundleName rejects load requests without a bundle name
	ErrEmptyBundleName = errors.New("bundle name is empty")
)

// DependencyLoadFailedError reports that a bundle was not loaded because the
// bundle it depends on failed. The dependent's own loader never ran.
type DependencyLoadFailedError struct {
	Bundle     string
	Dependency string
	Err        error
}

func (e *DependencyLoadFailedError) Error() string {
	return fmt.Sprintf("bundle %q: dependency %q failed to load: %v", e.Bundle, e.Dependency, e.Err)
}

func (e *DependencyLoadFailedError) Unwrap() error {
	return e.Err
}

// LoaderFailedError wraps an error returned by the external loader.
type LoaderFailedError struct {
	Bundle string
	Err    error
}

func (e *LoaderFailedError) Error() string {
	return fmt.Sprintf("bundle %q failed to load: %v", e.Bundle, e.Err)
}

func (e *LoaderFailedError) Unwrap() error {
	return e.Err
}
