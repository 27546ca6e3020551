// Package lock provides per-user locking for wallet and session operations.
// It serializes the requests of one user inside a single process; the
// database row lock taken inside each transaction is what holds across
// processes.
package lock

import (
	"context"
	"sync"
	"time"
)

// userMutex is a one-slot semaphore with a reference count for cleanup.
type userMutex struct {
	sem  chan struct{}
	refs int
}

// UserLock provides per-user locking to prevent race conditions
// during balance operations and challenge sessions.
type UserLock struct {
	mu    sync.Mutex
	locks map[string]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[string]*userMutex)}
}

// acquire returns the mutex for userID with its reference count raised.
func (ul *UserLock) acquire(userID string) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{sem: make(chan struct{}, 1)}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

// release drops a reference and forgets idle mutexes.
func (ul *UserLock) release(userID string, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID string) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	<-m.sem
	ul.release(userID, m)
}

// LockContext waits for the lock until ctx is done or timeout elapses.
func (ul *UserLock) LockContext(ctx context.Context, userID string, timeout time.Duration) error {
	m := ul.acquire(userID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.release(userID, m)
		return ctx.Err()
	case <-timer.C:
		ul.release(userID, m)
		return ErrLockTimeout
	}
}

// WithLockContext executes fn while holding the user's lock, giving up
// with ErrLockTimeout or the context error if the lock cannot be taken in time.
func (ul *UserLock) WithLockContext(ctx context.Context, userID string, timeout time.Duration, fn func() error) error {
	if err := ul.LockContext(ctx, userID, timeout); err != nil {
		return err
	}
	defer ul.Unlock(userID)
	return fn()
}
