package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Constants for file locking
const (
	LockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// ErrLockTimeout is returned when the cache file lock could not be taken
// within the retry budget.
var ErrLockTimeout = errors.New("file lock not acquired")

// FileLock defines the interface for file locking operations
type FileLock interface {
	// TryLockContext attempts to acquire an exclusive lock with retries
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)

	// Unlock releases the lock
	Unlock() error
}

// FileLockFactory creates FileLock instances
type FileLockFactory interface {
	// New creates a new FileLock for the given path
	New(path string) FileLock
}

// FlockFactory is the default factory implementation using flock
type FlockFactory struct{}

// New implements FileLockFactory.New
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}

// LockPath returns the sidecar lock file used to guard name.
func LockPath(name string) string {
	return name + ".lock"
}

// WithFileLock runs fn while holding lock. Lock attempts are retried a few
// times; the whole acquisition is bounded by LockTimeout unless ctx ends first.
func WithFileLock(ctx context.Context, lock FileLock, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	if err := acquire(ctx, lock); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

func acquire(ctx context.Context, lock FileLock) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrLockTimeout, err)
			}
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrLockTimeout, lockMaxRetries)
}
