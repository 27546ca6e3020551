package service

import (
	"context"
	"errors"
	"time"

	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
)

// userLockTimeout bounds how long a request waits behind another request of
// the same user before giving up with ErrBusy.
const userLockTimeout = 5 * time.Second

// userTx runs fn in one database transaction while holding the in-process
// lock of userID. Errors are translated to service errors.
func userTx(ctx context.Context, locks *lock.UserLock, store *repository.Store, userID string, fn func(r *repository.Repositories) error) error {
	err := locks.WithLockContext(ctx, userID, userLockTimeout, func() error {
		return store.InTx(ctx, fn)
	})
	return translate(err)
}

// requireUser returns ErrUserNotFound when userID has no profile.
func requireUser(ctx context.Context, r *repository.Repositories, userID string) error {
	_, err := r.Profiles.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return ErrUserNotFound
	}
	return err
}
