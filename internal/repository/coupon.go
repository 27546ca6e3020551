package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

const couponColumns = `id, code, description, discount_percent, coin_price, max_uses, used_count,
	valid_from, valid_until, is_active, created_at`

// CouponRepository handles coupon persistence.
type CouponRepository struct {
	db DBTX
}

// NewCouponRepository creates a new CouponRepository instance.
func NewCouponRepository(db DBTX) *CouponRepository {
	return &CouponRepository{db: db}
}

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&c.DiscountPercent,
		&c.CoinPrice,
		&c.MaxUses,
		&c.UsedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepository) getOne(ctx context.Context, query string, args ...any) (*model.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		if isUniqueViolation(err, "coupons_code_key") {
			return nil, ErrCouponCodeTaken
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

func (r *CouponRepository) list(ctx context.Context, query string, args ...any) ([]*model.Coupon, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return out, nil
}

// Create inserts a coupon. The code must already be normalized.
func (r *CouponRepository) Create(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	query := `
		INSERT INTO coupons (id, code, description, discount_percent, coin_price, max_uses, valid_from, valid_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + couponColumns

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.getOne(ctx, query,
		c.ID, c.Code, c.Description, c.DiscountPercent, c.CoinPrice, c.MaxUses, c.ValidFrom, c.ValidUntil, c.IsActive)
}

// SetActive soft-activates or deactivates a coupon.
func (r *CouponRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Coupon, error) {
	query := `UPDATE coupons SET is_active = $2 WHERE id = $1 RETURNING ` + couponColumns
	return r.getOne(ctx, query, id, active)
}

// GetByID retrieves a coupon regardless of its active flag.
func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

// GetActiveByCode retrieves an active coupon by its normalized code.
func (r *CouponRepository) GetActiveByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 AND is_active`, code)
}

// ListPurchasable returns active coupons sold for coins.
func (r *CouponRepository) ListPurchasable(ctx context.Context) ([]*model.Coupon, error) {
	return r.list(ctx, `SELECT `+couponColumns+`
		FROM coupons
		WHERE is_active AND coin_price IS NOT NULL
		ORDER BY coin_price, code`)
}

// ListAll returns every coupon, newest first.
func (r *CouponRepository) ListAll(ctx context.Context) ([]*model.Coupon, error) {
	return r.list(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
}

// Redeem increments used_count only while the coupon is still valid at now,
// so concurrent redemptions cannot exceed max_uses.
// Returns ErrCouponUnavailable when the guard fails.
func (r *CouponRepository) Redeem(ctx context.Context, id uuid.UUID, now time.Time) (*model.Coupon, error) {
	query := `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1
		  AND is_active
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until >= $2)
		  AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING ` + couponColumns

	c, err := r.getOne(ctx, query, id, now)
	if errors.Is(err, ErrCouponNotFound) {
		return nil, ErrCouponUnavailable
	}
	return c, err
}

// Grant records that userID obtained the coupon.
// Returns ErrCouponAlreadyOwned on a second grant.
func (r *CouponRepository) Grant(ctx context.Context, userID string, couponID uuid.UUID) error {
	const query = `INSERT INTO user_coupons (user_id, coupon_id) VALUES ($1, $2)`

	if _, err := r.db.Exec(ctx, query, userID, couponID); err != nil {
		if isUniqueViolation(err, "user_coupons_pkey") {
			return ErrCouponAlreadyOwned
		}
		return fmt.Errorf("failed to grant coupon: %w", err)
	}
	return nil
}

// ListByUser returns the coupons a user obtained, newest first.
func (r *CouponRepository) ListByUser(ctx context.Context, userID string) ([]*model.UserCoupon, error) {
	query := `
		SELECT uc.user_id, uc.acquired_at, ` + prefixed("c", couponColumns) + `
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1
		ORDER BY uc.acquired_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user coupons: %w", err)
	}
	defer rows.Close()

	var out []*model.UserCoupon
	for rows.Next() {
		var uc model.UserCoupon
		c := &uc.Coupon
		err := rows.Scan(
			&uc.UserID,
			&uc.AcquiredAt,
			&c.ID,
			&c.Code,
			&c.Description,
			&c.DiscountPercent,
			&c.CoinPrice,
			&c.MaxUses,
			&c.UsedCount,
			&c.ValidFrom,
			&c.ValidUntil,
			&c.IsActive,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user coupon: %w", err)
		}
		out = append(out, &uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user coupons: %w", err)
	}
	return out, nil
}
