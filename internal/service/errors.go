// Package service provides business logic implementations.
package service

import (
	"errors"

	"calixo/internal/apperr"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
	"calixo/internal/shop"
)

// Service errors. Each carries the kind handlers translate to a status.
var (
	ErrProfileNotFound      = apperr.New(apperr.KindNotFound, "profile not found")
	ErrUserNotFound         = apperr.New(apperr.KindNotFound, "user not found")
	ErrChallengeNotFound    = apperr.New(apperr.KindNotFound, "challenge not found")
	ErrSessionNotFound      = apperr.New(apperr.KindNotFound, "challenge session not found")
	ErrActiveSession        = apperr.New(apperr.KindStateConflict, "another challenge is already in progress")
	ErrSessionFinished      = apperr.New(apperr.KindStateConflict, "challenge session already finished")
	ErrItemNotFound         = apperr.New(apperr.KindNotFound, "store item not found")
	ErrItemNotOwned         = apperr.New(apperr.KindNotFound, "item not owned")
	ErrItemKeyTaken         = apperr.New(apperr.KindStateConflict, "an item with this name already exists")
	ErrCouponInvalid        = apperr.New(apperr.KindNotFound, "invalid coupon code")
	ErrCouponNotYetValid    = apperr.New(apperr.KindValidation, "coupon is not valid yet")
	ErrCouponExpired        = apperr.New(apperr.KindValidation, "coupon has expired")
	ErrCouponExhausted      = apperr.New(apperr.KindStateConflict, "coupon has no uses left")
	ErrCouponNotForSale     = apperr.New(apperr.KindNotFound, "coupon is not for sale")
	ErrCouponOwned          = apperr.New(apperr.KindStateConflict, "coupon already owned")
	ErrCouponCodeTaken      = apperr.New(apperr.KindStateConflict, "coupon code already exists")
	ErrSelfFollow           = apperr.New(apperr.KindValidation, "cannot follow yourself")
	ErrSelfInvite           = apperr.New(apperr.KindValidation, "cannot invite yourself")
	ErrNotSocialChallenge   = apperr.New(apperr.KindValidation, "challenge is not a social challenge")
	ErrInviteNotFound       = apperr.New(apperr.KindNotFound, "invitation not found")
	ErrInviteNotPending     = apperr.New(apperr.KindStateConflict, "invitation already answered")
	ErrInviteExpired        = apperr.New(apperr.KindStateConflict, "invitation has expired")
	ErrNotificationNotFound = apperr.New(apperr.KindNotFound, "notification not found")
	ErrFeedItemNotFound     = apperr.New(apperr.KindNotFound, "feed item not found")
	ErrEmptyPost            = apperr.New(apperr.KindValidation, "post needs text or an image")
	ErrReportNotFound       = apperr.New(apperr.KindNotFound, "report not found")
	ErrReportTarget         = apperr.New(apperr.KindValidation, "report must reference a user or a feed item")
	ErrReportSelf           = apperr.New(apperr.KindValidation, "cannot report yourself")
	ErrReportResolved       = apperr.New(apperr.KindStateConflict, "report already resolved")
	ErrUploadsDisabled      = apperr.New(apperr.KindValidation, "image uploads are not configured")
	ErrUnsupportedImage     = apperr.New(apperr.KindValidation, "unsupported image type")
	ErrBusy                 = apperr.New(apperr.KindStateConflict, "another request for this user is in progress, try again")
)

// translate maps storage-level errors that reach a service boundary without
// being handled to their user-facing counterparts. Anything else passes
// through and surfaces as internal.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrProfileNotFound):
		return ErrProfileNotFound
	case errors.Is(err, repository.ErrChallengeNotFound):
		return ErrChallengeNotFound
	case errors.Is(err, repository.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, repository.ErrActiveSessionExists):
		return ErrActiveSession
	case errors.Is(err, repository.ErrSessionNotInProgress):
		return ErrSessionFinished
	case errors.Is(err, repository.ErrStoreItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, repository.ErrItemKeyTaken):
		return ErrItemKeyTaken
	case errors.Is(err, repository.ErrItemNotOwned):
		return ErrItemNotOwned
	case errors.Is(err, repository.ErrAlreadyOwned):
		return shop.ErrAlreadyOwned
	case errors.Is(err, repository.ErrInsufficientCoins):
		return shop.ErrInsufficientCoins
	case errors.Is(err, repository.ErrCouponNotFound):
		return ErrCouponInvalid
	case errors.Is(err, repository.ErrCouponCodeTaken):
		return ErrCouponCodeTaken
	case errors.Is(err, repository.ErrCouponUnavailable):
		return ErrCouponExhausted
	case errors.Is(err, repository.ErrCouponAlreadyOwned):
		return ErrCouponOwned
	case errors.Is(err, repository.ErrNotificationNotFound):
		return ErrNotificationNotFound
	case errors.Is(err, repository.ErrSocialSessionNotFound):
		return ErrInviteNotFound
	case errors.Is(err, repository.ErrFeedItemNotFound):
		return ErrFeedItemNotFound
	case errors.Is(err, repository.ErrReportNotFound):
		return ErrReportNotFound
	case errors.Is(err, lock.ErrLockTimeout):
		return ErrBusy
	}
	return err
}
