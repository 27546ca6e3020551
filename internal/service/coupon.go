package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
	"calixo/internal/shop"
)

// CouponService handles coupon validation, coin purchases and administration.
type CouponService struct {
	store    *repository.Store
	userLock *lock.UserLock
	now      func() time.Time
}

// NewCouponService creates a new CouponService instance.
func NewCouponService(store *repository.Store, userLock *lock.UserLock) *CouponService {
	return &CouponService{
		store:    store,
		userLock: userLock,
		now:      time.Now,
	}
}

// CouponValidation is what a valid code grants.
type CouponValidation struct {
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discountPercent"`
	Description     string     `json:"description"`
	ValidUntil      *time.Time `json:"validUntil,omitempty"`
	RemainingUses   *int       `json:"remainingUses,omitempty"`
}

// NormalizeCode trims a code and upper-cases it. Codes are stored normalized.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// checkCoupon applies the validity window and the usage cap.
func checkCoupon(c *model.Coupon, now time.Time) error {
	switch {
	case !c.IsActive:
		return ErrCouponInvalid
	case c.ValidFrom.After(now):
		return ErrCouponNotYetValid
	case c.ValidUntil != nil && c.ValidUntil.Before(now):
		return ErrCouponExpired
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return ErrCouponExhausted
	}
	return nil
}

func validation(c *model.Coupon) *CouponValidation {
	v := &CouponValidation{
		Code:            c.Code,
		DiscountPercent: c.DiscountPercent,
		Description:     c.Description,
		ValidUntil:      c.ValidUntil,
	}
	if c.MaxUses != nil {
		remaining := max(*c.MaxUses-c.UsedCount, 0)
		v.RemainingUses = &remaining
	}
	return v
}

// Validate checks a code without consuming it.
func (s *CouponService) Validate(ctx context.Context, code string) (*CouponValidation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperr.Validation("coupon code is required")
	}
	c, err := s.store.Coupons.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, translate(err)
	}
	if err := checkCoupon(c, s.now()); err != nil {
		return nil, err
	}
	return validation(c), nil
}

// ListForSale returns active coupons purchasable with coins that can still
// be redeemed.
func (s *CouponService) ListForSale(ctx context.Context) ([]*model.Coupon, error) {
	all, err := s.store.Coupons.ListPurchasable(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*model.Coupon, 0, len(all))
	for _, c := range all {
		if checkCoupon(c, now) == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// CouponPurchase reports the outcome of a coupon purchase.
type CouponPurchase struct {
	Coupon *model.Coupon `json:"coupon"`
	Coins  int64         `json:"coins"`
}

// Purchase buys a store coupon with coins and consumes one use. Ownership,
// the use counter, the debit and the ledger entry are written together.
func (s *CouponService) Purchase(ctx context.Context, userID string, couponID uuid.UUID) (*CouponPurchase, error) {
	var result CouponPurchase

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		now := s.now()

		c, err := r.Coupons.GetByID(ctx, couponID)
		if err != nil {
			return err
		}
		if !c.IsActive || c.CoinPrice == nil {
			return ErrCouponNotForSale
		}
		if err := checkCoupon(c, now); err != nil {
			return err
		}
		price := *c.CoinPrice

		p, err := r.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if p.Coins < price {
			return shop.ErrInsufficientCoins
		}

		if err := r.Coupons.Grant(ctx, userID, c.ID); err != nil {
			return err
		}
		if c, err = r.Coupons.Redeem(ctx, c.ID, now); err != nil {
			return err
		}

		coins := p.Coins
		if price > 0 {
			if coins, err = r.Profiles.Debit(ctx, userID, price); err != nil {
				return err
			}
			desc := "Purchased coupon " + c.Code
			ref := repository.LedgerRef{CouponID: &c.ID}
			if _, err := r.Transactions.Create(ctx, userID, -price, model.TxTypeSpend, ref, &desc); err != nil {
				return err
			}
		}

		result = CouponPurchase{Coupon: c, Coins: coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("coupon", result.Coupon.Code).
		Int64("balance", result.Coins).
		Msg("Coupon purchased")
	return &result, nil
}

// Mine returns the coupons the caller bought.
func (s *CouponService) Mine(ctx context.Context, userID string) ([]*model.UserCoupon, error) {
	return s.store.Coupons.ListByUser(ctx, userID)
}

// CouponInput holds the fields of a new coupon.
type CouponInput struct {
	Code            string     `json:"code" binding:"required,max=40"`
	Description     string     `json:"description"`
	DiscountPercent int        `json:"discountPercent" binding:"required,min=1,max=100"`
	CoinPrice       *int64     `json:"coinPrice" binding:"omitempty,gte=0"`
	MaxUses         *int       `json:"maxUses" binding:"omitempty,gt=0"`
	ValidFrom       *time.Time `json:"validFrom"`
	ValidUntil      *time.Time `json:"validUntil"`
}

func (in CouponInput) coupon(now time.Time) (*model.Coupon, error) {
	code := NormalizeCode(in.Code)
	switch {
	case code == "":
		return nil, apperr.Validation("coupon code is required")
	case strings.ContainsAny(code, " \t\n"):
		return nil, apperr.Validation("coupon code must not contain spaces")
	case in.DiscountPercent < 1 || in.DiscountPercent > 100:
		return nil, apperr.Validation("discount must be between 1 and 100 percent")
	case in.CoinPrice != nil && *in.CoinPrice < 0:
		return nil, apperr.Validation("coin price must not be negative")
	case in.MaxUses != nil && *in.MaxUses <= 0:
		return nil, apperr.Validation("max uses must be positive")
	}

	validFrom := now
	if in.ValidFrom != nil {
		validFrom = *in.ValidFrom
	}
	if in.ValidUntil != nil && in.ValidUntil.Before(validFrom) {
		return nil, apperr.Validation("validUntil must not be before validFrom")
	}

	return &model.Coupon{
		ID:              uuid.New(),
		Code:            code,
		Description:     strings.TrimSpace(in.Description),
		DiscountPercent: in.DiscountPercent,
		CoinPrice:       in.CoinPrice,
		MaxUses:         in.MaxUses,
		ValidFrom:       validFrom,
		ValidUntil:      in.ValidUntil,
		IsActive:        true,
	}, nil
}

// Create adds a coupon.
func (s *CouponService) Create(ctx context.Context, in CouponInput) (*model.Coupon, error) {
	c, err := in.coupon(s.now())
	if err != nil {
		return nil, err
	}
	created, err := s.store.Coupons.Create(ctx, c)
	if err != nil {
		return nil, translate(err)
	}
	log.Info().Str("coupon_id", created.ID.String()).Str("code", created.Code).Msg("Coupon created")
	return created, nil
}

// Deactivate disables a coupon.
func (s *CouponService) Deactivate(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	c, err := s.store.Coupons.SetActive(ctx, id, false)
	if err != nil {
		return nil, translate(err)
	}
	log.Info().Str("coupon_id", id.String()).Msg("Coupon deactivated")
	return c, nil
}

// List returns every coupon for administration.
func (s *CouponService) List(ctx context.Context) ([]*model.Coupon, error) {
	return s.store.Coupons.ListAll(ctx)
}
