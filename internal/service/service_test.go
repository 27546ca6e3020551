package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calixo/internal/apperr"
	"calixo/internal/challenge"
	"calixo/internal/config"
	"calixo/internal/model"
	"calixo/internal/pkg/db/dbtest"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
	"calixo/internal/shop"
)

type testEnv struct {
	store      *repository.Store
	profiles   *ProfileService
	challenges *ChallengeService
	items      *StoreService
	coupons    *CouponService
	social     *SocialService
	notes      *NotificationService
	moderation *ModerationService
	blobs      *memBlobs
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobs) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func setupEnv(t *testing.T) *testEnv {
	pool := dbtest.New(t)
	store := repository.NewStore(pool.Pool)
	locks := lock.NewUserLock()
	blobs := &memBlobs{objects: map[string][]byte{}}
	cfg := config.ChallengesConfig{
		DailyLimitFree:    1,
		DailyLimitPremium: 3,
		MaxFocusMinutes:   challenge.MaxFocusMinutes,
		Timezone:          "UTC",
		InviteTTL:         24 * time.Hour,
	}

	return &testEnv{
		store:      store,
		profiles:   NewProfileService(store, locks, blobs, func(id string) bool { return id == "root" }),
		challenges: NewChallengeService(store, locks, challenge.NewDefaultRegistry(cfg.MaxFocusMinutes), cfg),
		items:      NewStoreService(store, locks, blobs),
		coupons:    NewCouponService(store, locks),
		social:     NewSocialService(store, locks, blobs, cfg.InviteTTL),
		notes:      NewNotificationService(store),
		moderation: NewModerationService(store),
		blobs:      blobs,
	}
}

// seedUser creates a profile and grants coins through the ledger so the
// balance and the ledger stay in agreement.
func (e *testEnv) seedUser(t *testing.T, userID string, coins int64) {
	ctx := context.Background()
	_, _, err := e.profiles.EnsureUser(ctx, userID, userID)
	require.NoError(t, err)
	if coins == 0 {
		return
	}
	err = e.store.InTx(ctx, func(r *repository.Repositories) error {
		if _, err := r.Transactions.Create(ctx, userID, coins, model.TxTypeEarn, repository.LedgerRef{}, nil); err != nil {
			return err
		}
		_, err := r.Profiles.Credit(ctx, userID, coins)
		return err
	})
	require.NoError(t, err)
}

func (e *testEnv) seedChallenge(t *testing.T, typ model.ChallengeType, reward int64) *model.ChallengeDefinition {
	def, err := e.challenges.CreateDefinition(context.Background(), ChallengeInput{
		Type:            typ,
		Title:           string(typ) + " " + uuid.NewString()[:8],
		Reward:          reward,
		DurationMinutes: intPtr(30),
	})
	require.NoError(t, err)
	return def
}

func (e *testEnv) seedItem(t *testing.T, name, category string, price int64, premium bool) *model.StoreItem {
	it, err := e.items.CreateItem(context.Background(), ItemInput{
		Name:        name,
		Category:    category,
		Price:       price,
		PremiumOnly: premium,
	})
	require.NoError(t, err)
	return it
}

func (e *testEnv) assertLedgerConsistent(t *testing.T, userID string) {
	t.Helper()
	audit, err := e.profiles.AuditLedger(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "coins %d, ledger %d", audit.Coins, audit.LedgerSum)
}

// ============================================================================
// Challenge lifecycle
// ============================================================================

func TestChallenge_CompleteGrantsRewardEnergyAndFeed(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	def := e.seedChallenge(t, model.ChallengeFocus, 25)

	sess, err := e.challenges.Start(ctx, "alice", def.ID, intPtr(45))
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, sess.Status)
	require.NotNil(t, sess.SessionData.DurationMinutes)
	assert.Equal(t, 45, *sess.SessionData.DurationMinutes)

	res, err := e.challenges.Complete(ctx, "alice", sess.ID, &model.AttemptMetrics{DurationSeconds: 2700, Interruptions: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.CoinsEarned)
	assert.Equal(t, int64(25), res.Coins)
	assert.Equal(t, 100, res.AvatarEnergy)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, model.SessionCompleted, res.Session.Status)

	view, err := e.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(25), view.Coins)
	assert.Equal(t, 1, view.Focus.Sessions)
	assert.Equal(t, 1, view.Focus.Successful)

	feed, err := e.social.Feed(ctx, "alice", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, model.FeedItemChallengeCompleted, feed[0].Kind)

	e.assertLedgerConsistent(t, "alice")

	active, err := e.challenges.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestChallenge_EnergyGainIsClamped(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	require.NoError(t, e.store.Profiles.RecordActivity(ctx, "alice", 50, 0, time.Now().Add(-48*time.Hour)))
	def := e.seedChallenge(t, model.ChallengeSocial, 0)

	sess, err := e.challenges.Start(ctx, "alice", def.ID, nil)
	require.NoError(t, err)
	res, err := e.challenges.Complete(ctx, "alice", sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 58, res.AvatarEnergy)
	assert.Equal(t, int64(0), res.CoinsEarned)

	txs, err := e.profiles.Transactions(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs, "zero reward writes no ledger entry")
}

func TestChallenge_OneActiveSession(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	focus := e.seedChallenge(t, model.ChallengeFocus, 10)

	_, err := e.challenges.Start(ctx, "alice", focus.ID, nil)
	require.NoError(t, err)

	_, err = e.challenges.Start(ctx, "alice", focus.ID, nil)
	assert.ErrorIs(t, err, ErrActiveSession)
}

func TestChallenge_ConcurrentStartsYieldOneSession(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	focus := e.seedChallenge(t, model.ChallengeFocus, 10)

	const n = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.challenges.Start(ctx, "alice", focus.ID, nil); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	history, err := e.challenges.History(ctx, "alice", 50, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestChallenge_DailyCap(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "free", 0)
	daily := e.seedChallenge(t, model.ChallengeDaily, 5)
	focus := e.seedChallenge(t, model.ChallengeFocus, 5)

	sess, err := e.challenges.Start(ctx, "free", daily.ID, nil)
	require.NoError(t, err)
	_, err = e.challenges.Cancel(ctx, "free", sess.ID, "changed my mind")
	require.NoError(t, err)

	_, err = e.challenges.Start(ctx, "free", daily.ID, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "upgrade to premium")

	// Non-daily types are not capped.
	_, err = e.challenges.Start(ctx, "free", focus.ID, nil)
	require.NoError(t, err)

	cat, err := e.challenges.List(ctx, "free", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Usage.DailyUsed)
	assert.Equal(t, 1, cat.Usage.DailyLimit)
	assert.NotNil(t, cat.Usage.ActiveSessionID)
	for _, entry := range cat.Challenges {
		assert.Equal(t, entry.Type != model.ChallengeDaily, entry.CanStart, entry.Title)
	}
}

func TestChallenge_DailyCapFromSettings(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "free", 0)
	daily := e.seedChallenge(t, model.ChallengeDaily, 5)

	_, err := e.challenges.SetDailyLimits(ctx, DailyLimits{Free: 2, Premium: 5})
	require.NoError(t, err)

	for range 2 {
		sess, err := e.challenges.Start(ctx, "free", daily.ID, nil)
		require.NoError(t, err)
		_, err = e.challenges.Fail(ctx, "free", sess.ID, "phone", nil)
		require.NoError(t, err)
	}
	_, err = e.challenges.Start(ctx, "free", daily.ID, nil)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	_, err = e.profiles.SetPremium(ctx, "free", true)
	require.NoError(t, err)
	_, err = e.challenges.Start(ctx, "free", daily.ID, nil)
	assert.NoError(t, err)
}

func TestChallenge_StartValidation(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	focus := e.seedChallenge(t, model.ChallengeFocus, 10)

	_, err := e.challenges.Start(ctx, "alice", uuid.New(), nil)
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = e.challenges.Start(ctx, "alice", focus.ID, intPtr(challenge.MaxFocusMinutes+1))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = e.challenges.DeactivateDefinition(ctx, focus.ID)
	require.NoError(t, err)
	_, err = e.challenges.Start(ctx, "alice", focus.ID, nil)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallenge_TerminalStatesAreFinal(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)
	focus := e.seedChallenge(t, model.ChallengeFocus, 10)

	sess, err := e.challenges.Start(ctx, "alice", focus.ID, nil)
	require.NoError(t, err)

	_, err = e.challenges.Complete(ctx, "bob", sess.ID, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	failed, err := e.challenges.Fail(ctx, "alice", sess.ID, "distracted", &model.AttemptMetrics{DurationSeconds: 60, Interruptions: 3})
	require.NoError(t, err)
	require.NotNil(t, failed.SessionData.Failure)
	assert.Equal(t, 3, failed.SessionData.Failure.Interruptions)

	_, err = e.challenges.Complete(ctx, "alice", sess.ID, nil)
	assert.ErrorIs(t, err, ErrSessionFinished)
	_, err = e.challenges.Cancel(ctx, "alice", sess.ID, "")
	assert.ErrorIs(t, err, ErrSessionFinished)

	view, err := e.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Coins)
	assert.Equal(t, 1, view.Focus.Sessions)
	assert.Equal(t, 0, view.Focus.Successful)
}

// ============================================================================
// Store
// ============================================================================

func TestStore_PurchasePreconditionOrder(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)
	cheap := e.seedItem(t, "Blue Cap", shop.CategoryHat, 40, false)
	gold := e.seedItem(t, "Gold Crown", shop.CategoryHat, 500, true)
	vip := e.seedItem(t, "VIP Badge", shop.CategoryAccessory, 10, true)

	_, err := e.items.Purchase(ctx, "alice", uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)

	// Not enough coins wins over the premium gate.
	_, err = e.items.Purchase(ctx, "alice", gold.ID)
	assert.ErrorIs(t, err, shop.ErrInsufficientCoins)

	_, err = e.items.Purchase(ctx, "alice", vip.ID)
	assert.ErrorIs(t, err, shop.ErrPremiumRequired)

	res, err := e.items.Purchase(ctx, "alice", cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), res.Coins)
	assert.False(t, res.Owned.Equipped)

	_, err = e.items.Purchase(ctx, "alice", cheap.ID)
	assert.ErrorIs(t, err, shop.ErrAlreadyOwned)

	e.assertLedgerConsistent(t, "alice")
}

func TestStore_ConcurrentPurchasesNeverOverdraw(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)

	var items []*model.StoreItem
	for _, name := range []string{"Scarf", "Gloves", "Boots", "Shades"} {
		items = append(items, e.seedItem(t, name, shop.CategoryAccessory, 40, false))
	}

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.items.Purchase(ctx, "alice", it.ID)
		}()
	}
	wg.Wait()

	view, err := e.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(20), view.Coins)

	inv, err := e.items.Inventory(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, inv, 2)
	e.assertLedgerConsistent(t, "alice")
}

func TestStore_EquipOnePerCategory(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)
	red := e.seedItem(t, "Red Hat", shop.CategoryHat, 10, false)
	blue := e.seedItem(t, "Blue Hat", shop.CategoryHat, 10, false)
	other := e.seedItem(t, "Green Hat", shop.CategoryHat, 10, false)

	for _, it := range []*model.StoreItem{red, blue} {
		_, err := e.items.Purchase(ctx, "alice", it.ID)
		require.NoError(t, err)
	}

	_, err := e.items.Equip(ctx, "alice", red.ID, true)
	require.NoError(t, err)
	_, err = e.items.Equip(ctx, "alice", blue.ID, true)
	require.NoError(t, err)

	n, err := e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryHat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.items.Equip(ctx, "alice", other.ID, true)
	assert.ErrorIs(t, err, ErrItemNotOwned)

	ac, err := e.items.Equip(ctx, "alice", blue.ID, false)
	require.NoError(t, err)
	assert.False(t, ac.Equipped)
	n, err = e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryHat)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_RecategorizeKeepsOneEquippedPerCategory(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)
	hat := e.seedItem(t, "Red Hat", shop.CategoryHat, 10, false)
	top := e.seedItem(t, "Blue Top", shop.CategoryTop, 10, false)

	for _, it := range []*model.StoreItem{hat, top} {
		_, err := e.items.Purchase(ctx, "alice", it.ID)
		require.NoError(t, err)
		_, err = e.items.Equip(ctx, "alice", it.ID, true)
		require.NoError(t, err)
	}

	updated, err := e.items.UpdateItem(ctx, top.ID, ItemInput{
		Name:     "Blue Top",
		Category: shop.CategoryHat,
		Price:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, shop.CategoryHat, updated.Category)

	n, err := e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryHat)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "moved item must not stay equipped next to the existing hat")
	n, err = e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryTop)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	owned, err := e.items.Inventory(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	for _, o := range owned {
		assert.Equal(t, o.Item.Category, o.Category, "owned copy of %s out of sync", o.Item.Name)
	}

	// Equipping the moved item now swaps out the old hat.
	ac, err := e.items.Equip(ctx, "alice", top.ID, true)
	require.NoError(t, err)
	assert.Equal(t, shop.CategoryHat, ac.Category)
	n, err = e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryHat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inv, err := e.items.Inventory(ctx, "alice")
	require.NoError(t, err)
	for _, o := range inv {
		assert.Equal(t, o.ItemID == top.ID, o.Equipped, "item %s", o.Item.Name)
	}
}

func TestStore_UpdateItemSameCategoryKeepsEquipped(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)
	hat := e.seedItem(t, "Red Hat", shop.CategoryHat, 10, false)

	_, err := e.items.Purchase(ctx, "alice", hat.ID)
	require.NoError(t, err)
	_, err = e.items.Equip(ctx, "alice", hat.ID, true)
	require.NoError(t, err)

	_, err = e.items.UpdateItem(ctx, hat.ID, ItemInput{
		Name:     "Crimson Hat",
		Category: shop.CategoryHat,
		Price:    20,
	})
	require.NoError(t, err)

	n, err := e.store.Avatar.EquippedCount(ctx, "alice", shop.CategoryHat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ListItems(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 50)
	owned := e.seedItem(t, "Cheap Cap", shop.CategoryHat, 5, false)
	e.seedItem(t, "Fancy Cap", shop.CategoryHat, 80, false)
	e.seedItem(t, "Plain Tee", shop.CategoryTop, 20, false)

	_, err := e.items.Purchase(ctx, "alice", owned.ID)
	require.NoError(t, err)

	list, err := e.items.ListItems(ctx, "alice", shop.Filter{Category: shop.CategoryHat})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Fancy Cap", list[0].Name)
	assert.False(t, list[0].CanPurchase)
	assert.True(t, list[1].Owned)

	_, err = e.items.ListItems(ctx, "alice", shop.Filter{Category: "cloak"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStore_DuplicateItemName(t *testing.T) {
	e := setupEnv(t)
	e.seedItem(t, "Red Cap", shop.CategoryHat, 10, false)

	_, err := e.items.CreateItem(context.Background(), ItemInput{Name: "red cap", Category: shop.CategoryHat, Price: 5})
	assert.ErrorIs(t, err, ErrItemKeyTaken)
}

// ============================================================================
// Coupons
// ============================================================================

func TestCoupon_ValidateAndPurchase(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 100)

	c, err := e.coupons.Create(ctx, CouponInput{Code: "save20", DiscountPercent: 20, CoinPrice: int64Ptr(30), MaxUses: intPtr(5)})
	require.NoError(t, err)

	v, err := e.coupons.Validate(ctx, "  Save20 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", v.Code)
	assert.Equal(t, 5, *v.RemainingUses)

	_, err = e.coupons.Validate(ctx, "nope")
	assert.ErrorIs(t, err, ErrCouponInvalid)

	res, err := e.coupons.Purchase(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.Coins)
	assert.Equal(t, 1, res.Coupon.UsedCount)

	_, err = e.coupons.Purchase(ctx, "alice", c.ID)
	assert.ErrorIs(t, err, ErrCouponOwned)

	mine, err := e.coupons.Mine(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].Coupon.ID)

	e.assertLedgerConsistent(t, "alice")
}

func TestCoupon_PurchaseRespectsMaxUses(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		e.seedUser(t, u, 50)
	}
	c, err := e.coupons.Create(ctx, CouponInput{Code: "LIMITED", DiscountPercent: 50, CoinPrice: int64Ptr(10), MaxUses: intPtr(2)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.coupons.Purchase(ctx, u, c.ID)
		}()
	}
	wg.Wait()

	got, err := e.store.Coupons.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)

	_, err = e.coupons.Validate(ctx, "limited")
	assert.ErrorIs(t, err, ErrCouponExhausted)

	for _, u := range users {
		e.assertLedgerConsistent(t, u)
	}
}

func TestCoupon_NotForSaleAndInsufficient(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 5)

	free, err := e.coupons.Create(ctx, CouponInput{Code: "PROMO", DiscountPercent: 10})
	require.NoError(t, err)
	_, err = e.coupons.Purchase(ctx, "alice", free.ID)
	assert.ErrorIs(t, err, ErrCouponNotForSale)

	pricey, err := e.coupons.Create(ctx, CouponInput{Code: "PRICEY", DiscountPercent: 10, CoinPrice: int64Ptr(50)})
	require.NoError(t, err)
	_, err = e.coupons.Purchase(ctx, "alice", pricey.ID)
	assert.ErrorIs(t, err, shop.ErrInsufficientCoins)

	_, err = e.coupons.Create(ctx, CouponInput{Code: "promo", DiscountPercent: 15})
	assert.ErrorIs(t, err, ErrCouponCodeTaken)
}

// ============================================================================
// Social, notifications, moderation
// ============================================================================

func TestSocial_InviteAcceptNotifiesBothSides(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)
	walk := e.seedChallenge(t, model.ChallengeSocial, 10)
	focus := e.seedChallenge(t, model.ChallengeFocus, 10)

	_, err := e.social.Invite(ctx, "alice", focus.ID, "bob")
	assert.ErrorIs(t, err, ErrNotSocialChallenge)
	_, err = e.social.Invite(ctx, "alice", walk.ID, "alice")
	assert.ErrorIs(t, err, ErrSelfInvite)
	_, err = e.social.Invite(ctx, "alice", walk.ID, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	inv, err := e.social.Invite(ctx, "alice", walk.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.SocialPending, inv.Status)

	bobNotes, err := e.notes.List(ctx, "bob", true, 10)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	invite, ok := bobNotes[0].Payload.(model.SocialInvitePayload)
	require.True(t, ok)
	assert.Equal(t, inv.ID, invite.SocialSessionID)

	_, err = e.social.Accept(ctx, "alice", inv.ID)
	assert.ErrorIs(t, err, ErrInviteNotFound)

	accepted, err := e.social.Accept(ctx, "bob", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SocialInProgress, accepted.Status)

	_, err = e.social.Decline(ctx, "bob", inv.ID)
	assert.ErrorIs(t, err, ErrInviteNotPending)

	aliceNotes, err := e.notes.List(ctx, "alice", false, 10)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, model.NotificationSocialAccepted, aliceNotes[0].Type)

	n, err := e.notes.MarkAllSeen(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.ErrorIs(t, e.notes.MarkSeen(ctx, "alice", uuid.New()), ErrNotificationNotFound)
}

func TestSocial_ExpiredInvite(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)
	walk := e.seedChallenge(t, model.ChallengeSocial, 10)

	inv, err := e.social.Invite(ctx, "alice", walk.ID, "bob")
	require.NoError(t, err)

	e.social.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = e.social.Accept(ctx, "bob", inv.ID)
	assert.ErrorIs(t, err, ErrInviteExpired)

	n, err := e.social.ExpireInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.social.Decline(ctx, "bob", inv.ID)
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestSocial_FollowAndFeed(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)

	assert.ErrorIs(t, e.social.Follow(ctx, "alice", "alice"), ErrSelfFollow)
	assert.ErrorIs(t, e.social.Follow(ctx, "alice", "ghost"), ErrUserNotFound)
	require.NoError(t, e.social.Follow(ctx, "alice", "bob"))
	require.NoError(t, e.social.Follow(ctx, "alice", "bob"))

	notes, err := e.notes.List(ctx, "bob", false, 10)
	require.NoError(t, err)
	assert.Len(t, notes, 1, "following twice notifies once")

	_, err = e.social.Post(ctx, "bob", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyPost)

	post, err := e.social.Post(ctx, "bob", "", &Upload{
		Body:        bytes.NewReader([]byte("png")),
		Size:        3,
		ContentType: "image/png",
	})
	require.NoError(t, err)
	require.NotNil(t, post.ImageURL)
	assert.Len(t, e.blobs.objects, 1)

	feed, err := e.social.Feed(ctx, "alice", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "bob", feed[0].Username)

	require.NoError(t, e.social.Unfollow(ctx, "alice", "bob"))
	feed, err = e.social.Feed(ctx, "alice", time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestModeration_ResolveRemovesContent(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)
	e.seedUser(t, "mod", 0)

	post, err := e.social.Post(ctx, "bob", "spam spam spam", nil)
	require.NoError(t, err)

	_, err = e.moderation.Report(ctx, "alice", ReportInput{Reason: "spam"})
	assert.ErrorIs(t, err, ErrReportTarget)
	_, err = e.moderation.Report(ctx, "bob", ReportInput{FeedItemID: &post.ID, Reason: "spam"})
	assert.ErrorIs(t, err, ErrReportSelf)

	rp, err := e.moderation.Report(ctx, "alice", ReportInput{FeedItemID: &post.ID, Reason: "spam"})
	require.NoError(t, err)
	require.NotNil(t, rp.ReportedUserID)
	assert.Equal(t, "bob", *rp.ReportedUserID)

	pending := model.ReportPending
	queue, err := e.moderation.List(ctx, &pending, 10)
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	resolved, err := e.moderation.Resolve(ctx, "mod", rp.ID, Resolution{Status: model.ReportResolved, Resolution: "removed", DeleteContent: true})
	require.NoError(t, err)
	assert.Equal(t, model.ReportResolved, resolved.Status)

	_, err = e.store.Feed.GetItem(ctx, post.ID)
	assert.ErrorIs(t, err, repository.ErrFeedItemNotFound)

	_, err = e.moderation.Resolve(ctx, "mod", rp.ID, Resolution{Status: model.ReportReviewed})
	assert.ErrorIs(t, err, ErrReportResolved)

	notes, err := e.notes.List(ctx, "alice", false, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	payload, ok := notes[0].Payload.(model.ReportResolvedPayload)
	require.True(t, ok)
	assert.True(t, payload.ContentRemoved)
}

// ============================================================================
// Profiles
// ============================================================================

func TestProfile_EnsureUserAndAdmins(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	p, created, err := e.profiles.EnsureUser(ctx, "0123456789abcdef", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-01234567", p.Username)
	assert.Equal(t, model.RoleUser, p.Role)

	p, created, err = e.profiles.EnsureUser(ctx, "0123456789abcdef", "carol")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "carol", p.Username)

	root, _, err := e.profiles.EnsureUser(ctx, "root", "root")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, root.Role)
}

func TestProfile_InactivityDecaySweep(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", 0)
	e.seedUser(t, "bob", 0)

	now := time.Now()
	require.NoError(t, e.store.Profiles.RecordActivity(ctx, "alice", 90, 3, now.Add(-3*24*time.Hour-time.Minute)))
	require.NoError(t, e.store.Profiles.RecordActivity(ctx, "bob", 90, 3, now.Add(-time.Hour)))

	e.profiles.now = func() time.Time { return now }
	changed, err := e.profiles.ApplyInactivityDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// A second sweep on the same day owes nothing more.
	changed, err = e.profiles.ApplyInactivityDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	alice, err := e.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 84, alice.AvatarEnergy)

	// A day later alice owes one more day and bob crosses his first day.
	e.profiles.now = func() time.Time { return now.Add(24 * time.Hour) }
	changed, err = e.profiles.ApplyInactivityDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	alice, err = e.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 82, alice.AvatarEnergy)

	bob, err := e.profiles.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 88, bob.AvatarEnergy)
}

func TestProfile_SetPremiumUnknownUser(t *testing.T) {
	e := setupEnv(t)
	_, err := e.profiles.SetPremium(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
