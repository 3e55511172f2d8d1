package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write.
// This distinction allows the LockManager to use read locks for concurrent
// readers and an exclusive lock for writers.
type OperationType int

const (
	// ReadOperation indicates an operation that only reads data.
	// Multiple read operations can proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies data.
	// Write operations are exclusive.
	WriteOperation
)

// LockManager provides centralized lock management for the in-memory side of
// the cache. Keeping every lock/unlock pair inside Execute avoids the
// lock/unlock/relock patterns that tend to deadlock.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager creates a new lock manager instance.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Execute runs fn with the lock matching opType held. The lock is released
// via defer, so it is dropped even if fn panics.
//
// Example:
//
//	err := lm.Execute(ReadOperation, func() error {
//	    // Safe to read data here
//	    return nil
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case ReadOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}
