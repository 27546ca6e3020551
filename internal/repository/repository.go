// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound       = errors.New("profile not found")
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrSessionNotFound       = errors.New("challenge session not found")
	ErrActiveSessionExists   = errors.New("an in-progress session already exists")
	ErrSessionNotInProgress  = errors.New("challenge session is not in progress")
	ErrStoreItemNotFound     = errors.New("store item not found")
	ErrItemKeyTaken          = errors.New("store item key already in use")
	ErrItemNotOwned          = errors.New("item not owned")
	ErrAlreadyOwned          = errors.New("item already owned")
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponCodeTaken       = errors.New("coupon code already in use")
	ErrCouponUnavailable     = errors.New("coupon no longer available")
	ErrCouponAlreadyOwned    = errors.New("coupon already owned")
	ErrInsufficientCoins     = errors.New("insufficient coins")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrSocialSessionNotFound = errors.New("social session not found")
	ErrFeedItemNotFound      = errors.New("feed item not found")
	ErrReportNotFound        = errors.New("report not found")
	ErrSettingNotFound       = errors.New("setting not found")
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so every
// repository runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Repositories groups every repository bound to one DBTX.
type Repositories struct {
	Profiles      *ProfileRepository
	Challenges    *ChallengeRepository
	Sessions      *SessionRepository
	Transactions  *TransactionRepository
	StoreItems    *StoreItemRepository
	Avatar        *AvatarRepository
	Coupons       *CouponRepository
	Notifications *NotificationRepository
	Social        *SocialRepository
	Feed          *FeedRepository
	Reports       *ReportRepository
	Settings      *SettingsRepository
}

// NewRepositories binds all repositories to db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Profiles:      NewProfileRepository(db),
		Challenges:    NewChallengeRepository(db),
		Sessions:      NewSessionRepository(db),
		Transactions:  NewTransactionRepository(db),
		StoreItems:    NewStoreItemRepository(db),
		Avatar:        NewAvatarRepository(db),
		Coupons:       NewCouponRepository(db),
		Notifications: NewNotificationRepository(db),
		Social:        NewSocialRepository(db),
		Feed:          NewFeedRepository(db),
		Reports:       NewReportRepository(db),
		Settings:      NewSettingsRepository(db),
	}
}

// Store owns the pool and hands out repositories bound to it or to a transaction.
type Store struct {
	*Repositories
	pool *pgxpool.Pool
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Repositories: NewRepositories(pool), pool: pool}
}

// InTx runs fn inside one database transaction. The transaction commits when
// fn returns nil and rolls back otherwise; fn's error is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(r *Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// isUniqueViolation reports whether err is a unique constraint violation,
// optionally on the named constraint or index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isCheckViolation reports whether err is a CHECK constraint violation.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
