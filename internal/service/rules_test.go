package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"calixo/internal/apperr"
	"calixo/internal/challenge"
	"calixo/internal/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

// ============================================================================
// Coupons
// ============================================================================

func TestCheckCoupon(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		coupon model.Coupon
		want   error
	}{
		{"valid open ended", model.Coupon{IsActive: true, ValidFrom: past}, nil},
		{"inactive", model.Coupon{IsActive: false, ValidFrom: past}, ErrCouponInvalid},
		{"not yet valid", model.Coupon{IsActive: true, ValidFrom: future}, ErrCouponNotYetValid},
		{"expired", model.Coupon{IsActive: true, ValidFrom: past, ValidUntil: &past}, ErrCouponExpired},
		{"valid until now", model.Coupon{IsActive: true, ValidFrom: past, ValidUntil: &now}, nil},
		{"exhausted", model.Coupon{IsActive: true, ValidFrom: past, MaxUses: intPtr(2), UsedCount: 2}, ErrCouponExhausted},
		{"one use left", model.Coupon{IsActive: true, ValidFrom: past, MaxUses: intPtr(2), UsedCount: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCoupon(&tt.coupon, now)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

// TestCouponValidityProperty checks that a coupon is accepted exactly when it
// is active, inside its window and under its usage cap.
func TestCouponValidityProperty(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rapid.Check(t, func(rt *rapid.T) {
		now := base.Add(time.Duration(rapid.IntRange(0, 1000).Draw(rt, "now")) * time.Minute)
		c := model.Coupon{
			IsActive:  rapid.Bool().Draw(rt, "active"),
			ValidFrom: base.Add(time.Duration(rapid.IntRange(0, 1000).Draw(rt, "from")) * time.Minute),
			UsedCount: rapid.IntRange(0, 10).Draw(rt, "used"),
		}
		if rapid.Bool().Draw(rt, "hasUntil") {
			until := c.ValidFrom.Add(time.Duration(rapid.IntRange(0, 1000).Draw(rt, "until")) * time.Minute)
			c.ValidUntil = &until
		}
		if rapid.Bool().Draw(rt, "hasMax") {
			c.MaxUses = intPtr(rapid.IntRange(1, 10).Draw(rt, "max"))
		}

		want := c.IsActive &&
			!c.ValidFrom.After(now) &&
			(c.ValidUntil == nil || !c.ValidUntil.Before(now)) &&
			(c.MaxUses == nil || c.UsedCount < *c.MaxUses)

		err := checkCoupon(&c, now)
		if want != (err == nil) {
			rt.Fatalf("coupon %+v at %v: want valid=%v, got %v", c, now, want, err)
		}
	})
}

func TestCouponValidation_RemainingUses(t *testing.T) {
	v := validation(&model.Coupon{Code: "SAVE10", DiscountPercent: 10, MaxUses: intPtr(5), UsedCount: 3})
	require.NotNil(t, v.RemainingUses)
	assert.Equal(t, 2, *v.RemainingUses)
	assert.Equal(t, "SAVE10", v.Code)

	v = validation(&model.Coupon{Code: "OPEN", DiscountPercent: 5})
	assert.Nil(t, v.RemainingUses)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "WELCOME10", NormalizeCode("  welcome10 "))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestCouponInput(t *testing.T) {
	now := time.Now()

	c, err := CouponInput{Code: " spring25 ", DiscountPercent: 25, CoinPrice: int64Ptr(50)}.coupon(now)
	require.NoError(t, err)
	assert.Equal(t, "SPRING25", c.Code)
	assert.Equal(t, now, c.ValidFrom)
	assert.True(t, c.IsActive)

	_, err = CouponInput{Code: "X", DiscountPercent: 0}.coupon(now)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = CouponInput{Code: "X", DiscountPercent: 101}.coupon(now)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = CouponInput{Code: "TWO WORDS", DiscountPercent: 10}.coupon(now)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	before := now.Add(-time.Hour)
	_, err = CouponInput{Code: "X", DiscountPercent: 10, ValidUntil: &before}.coupon(now)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// ============================================================================
// Catalog
// ============================================================================

func TestAnnotateCatalog(t *testing.T) {
	kinds := challenge.NewDefaultRegistry(challenge.MaxFocusMinutes)
	defs := []*model.ChallengeDefinition{
		{ID: uuid.New(), Type: model.ChallengeDaily, Title: "No phone at dinner"},
		{ID: uuid.New(), Type: model.ChallengeFocus, Title: "Deep work"},
		{ID: uuid.New(), Type: model.ChallengeSocial, Title: "Walk together"},
	}

	entries := annotateCatalog(defs, kinds, 0, 1, false)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, e.CanStart, e.Title)
		assert.Empty(t, e.Reason)
	}

	entries = annotateCatalog(defs, kinds, 1, 1, false)
	assert.False(t, entries[0].CanStart)
	assert.Contains(t, entries[0].Reason, "premium")
	assert.True(t, entries[1].CanStart)
	assert.True(t, entries[2].CanStart)

	entries = annotateCatalog(defs, kinds, 3, 3, true)
	assert.False(t, entries[0].CanStart)
	assert.NotContains(t, entries[0].Reason, "upgrade")
}

// TestAnnotateCatalogProperty checks that only daily definitions are ever
// blocked and that they are blocked exactly when the cap is used up.
func TestAnnotateCatalogProperty(t *testing.T) {
	kinds := challenge.NewDefaultRegistry(challenge.MaxFocusMinutes)

	rapid.Check(t, func(rt *rapid.T) {
		used := rapid.IntRange(0, 5).Draw(rt, "used")
		limit := rapid.IntRange(0, 5).Draw(rt, "limit")
		premium := rapid.Bool().Draw(rt, "premium")
		types := rapid.SliceOfN(rapid.SampledFrom(model.ChallengeTypes()), 0, 10).Draw(rt, "types")

		defs := make([]*model.ChallengeDefinition, len(types))
		for i, typ := range types {
			defs[i] = &model.ChallengeDefinition{ID: uuid.New(), Type: typ}
		}

		for _, e := range annotateCatalog(defs, kinds, used, limit, premium) {
			want := e.Type != model.ChallengeDaily || used < limit
			if e.CanStart != want {
				rt.Fatalf("%s with %d/%d used: canStart=%v", e.Type, used, limit, e.CanStart)
			}
			if e.CanStart != (e.Reason == "") {
				rt.Fatalf("reason %q does not match canStart=%v", e.Reason, e.CanStart)
			}
		}
	})
}

func TestChallengeInput_Validate(t *testing.T) {
	ok := ChallengeInput{Type: model.ChallengeFocus, Title: "Read", Reward: 10, DurationMinutes: intPtr(30)}
	assert.NoError(t, ok.validate(challenge.MaxFocusMinutes))

	bad := []ChallengeInput{
		{Type: "chess", Title: "x"},
		{Type: model.ChallengeDaily, Title: "  "},
		{Type: model.ChallengeDaily, Title: "x", Reward: -1},
		{Type: model.ChallengeFocus, Title: "x", DurationMinutes: intPtr(0)},
		{Type: model.ChallengeFocus, Title: "x", DurationMinutes: intPtr(challenge.MaxFocusMinutes + 1)},
	}
	for _, in := range bad {
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(in.validate(challenge.MaxFocusMinutes)), "%+v", in)
	}

	def := ChallengeInput{Type: model.ChallengeDaily, Title: " Walk ", Reward: 5}.definition(uuid.Nil)
	assert.Equal(t, "Walk", def.Title)
	assert.True(t, def.IsActive)
}

// ============================================================================
// Store items
// ============================================================================

func TestItemInput(t *testing.T) {
	it, err := ItemInput{Name: "Red Cap", Category: "hat", Price: 30}.item(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "red-cap", it.Key)
	assert.True(t, it.IsActive)

	_, err = ItemInput{Name: "Cape", Category: "cloak", Price: 10}.item(uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = ItemInput{Name: "!!!", Category: "hat"}.item(uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = ItemInput{Name: "Cap", Category: "hat", Price: -1}.item(uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// ============================================================================
// Social
// ============================================================================

func TestCheckInvite(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	ttl := 24 * time.Hour

	fresh := &model.SocialSession{Status: model.SocialPending, CreatedAt: now.Add(-time.Hour)}
	assert.NoError(t, checkInvite(fresh, now, ttl))

	stale := &model.SocialSession{Status: model.SocialPending, CreatedAt: now.Add(-25 * time.Hour)}
	assert.ErrorIs(t, checkInvite(stale, now, ttl), ErrInviteExpired)

	expired := &model.SocialSession{Status: model.SocialExpired, CreatedAt: now}
	assert.ErrorIs(t, checkInvite(expired, now, ttl), ErrInviteExpired)

	answered := &model.SocialSession{Status: model.SocialDeclined, CreatedAt: now}
	assert.ErrorIs(t, checkInvite(answered, now, ttl), ErrInviteNotPending)
}

// ============================================================================
// Helpers
// ============================================================================

func TestImageKey(t *testing.T) {
	key, err := imageKey("feed", "user-1", "image/PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "feed/user-1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	key, err = imageKey("avatars", "u", "image/jpeg; charset=binary")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	_, err = imageKey("feed", "u", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestStoreImage_Disabled(t *testing.T) {
	_, err := storeImage(t.Context(), nil, "feed", "u", &Upload{ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0))
	assert.Equal(t, 20, clampLimit(-5))
	assert.Equal(t, 50, clampLimit(50))
	assert.Equal(t, 100, clampLimit(1000))
}

func TestDefaultUsername(t *testing.T) {
	assert.Equal(t, "user-abcdefgh", defaultUsername("abcdefgh-1234-5678"))
	assert.Equal(t, "user-abc", defaultUsername("abc"))
}
