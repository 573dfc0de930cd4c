package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write.
// Read operations share the lock, write operations hold it exclusively.
type OperationType int

const (
	// ReadOperation indicates an operation that only reads data.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies data.
	WriteOperation
)

func (o OperationType) String() string {
	if o == WriteOperation {
		return "write"
	}
	return "read"
}

// LockManager provides centralized lock management for the database scopes.
// Every read scope holds a read lock and every write scope the write lock
// for its whole duration, so a scope observes one consistent snapshot.
type LockManager struct {
	mu *sync.RWMutex
}

// NewLockManager creates a new lock manager instance.
func NewLockManager() *LockManager {
	return &LockManager{
		mu: &sync.RWMutex{},
	}
}

// Execute runs fn while holding the lock matching opType. The lock is
// released via defer, so it is released even if fn panics.
//
// Example:
//
//	err := lockManager.Execute(ReadOperation, func() error {
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
