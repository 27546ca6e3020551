package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"calixo/internal/challenge"
	"calixo/internal/energy"
	"calixo/internal/model"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
)

// ProfileService handles profile bootstrap, the ledger view, the leaderboard
// and energy decay.
type ProfileService struct {
	store    *repository.Store
	userLock *lock.UserLock
	blobs    BlobStore
	admins   func(userID string) bool
	now      func() time.Time
}

// NewProfileService creates a new ProfileService instance. isAdmin reports
// bootstrap admins configured outside the database; blobs may be nil.
func NewProfileService(
	store *repository.Store,
	userLock *lock.UserLock,
	blobs BlobStore,
	isAdmin func(userID string) bool,
) *ProfileService {
	return &ProfileService{
		store:    store,
		userLock: userLock,
		blobs:    blobs,
		admins:   isAdmin,
		now:      time.Now,
	}
}

// ProfileView is a profile with the derived values shown to its owner.
type ProfileView struct {
	*model.Profile
	EnergyLevel         energy.Level           `json:"energyLevel"`
	Followers           int                    `json:"followers"`
	Following           int                    `json:"following"`
	UnseenNotifications int                    `json:"unseenNotifications"`
	Focus               *repository.FocusStats `json:"focus"`
}

// EnsureUser ensures a profile exists for an authenticated user, creating one
// on first sight. Returns the profile and whether it was newly created.
func (s *ProfileService) EnsureUser(ctx context.Context, userID, username string) (*model.Profile, bool, error) {
	if username == "" {
		username = defaultUsername(userID)
	}

	p, created, err := s.store.Profiles.GetOrCreate(ctx, userID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure profile: %w", err)
	}

	if created {
		log.Info().Str("user_id", userID).Msg("Profile created")
	} else if p.Username != username && username != defaultUsername(userID) {
		if err := s.store.Profiles.UpdateUsername(ctx, userID, username); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to update username")
		} else {
			p.Username = username
		}
	}

	if p.Role != model.RoleAdmin && s.admins != nil && s.admins(userID) {
		p.Role = model.RoleAdmin
	}
	return p, created, nil
}

func defaultUsername(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return "user-" + userID
}

// Get returns the caller's profile view.
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	p, err := s.store.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	followers, following, err := s.store.Feed.FollowCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	unseen, err := s.store.Notifications.UnseenCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	focus, err := s.store.Sessions.GetFocusStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Profile:             p,
		EnergyLevel:         energy.LevelOf(p.AvatarEnergy),
		Followers:           followers,
		Following:           following,
		UnseenNotifications: unseen,
		Focus:               focus,
	}, nil
}

// Transactions returns the caller's ledger, newest first.
func (s *ProfileService) Transactions(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error) {
	return s.store.Transactions.GetByUserID(ctx, userID, clampLimit(limit), max(offset, 0))
}

// LedgerAudit compares a profile's balance with the sum of its ledger.
type LedgerAudit struct {
	Coins      int64 `json:"coins"`
	LedgerSum  int64 `json:"ledgerSum"`
	Consistent bool  `json:"consistent"`
}

// AuditLedger returns the balance and ledger sum of a user.
func (s *ProfileService) AuditLedger(ctx context.Context, userID string) (*LedgerAudit, error) {
	var audit LedgerAudit
	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		p, err := r.Profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := r.Transactions.SumByUserID(ctx, userID)
		if err != nil {
			return err
		}
		audit = LedgerAudit{Coins: p.Coins, LedgerSum: sum, Consistent: p.Coins == sum}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if !audit.Consistent {
		log.Error().
			Str("user_id", userID).
			Int64("coins", audit.Coins).
			Int64("ledger_sum", audit.LedgerSum).
			Msg("Ledger mismatch")
	}
	return &audit, nil
}

// Leaderboard returns the top users by coins.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]*model.Profile, error) {
	return s.store.Profiles.GetTopByCoins(ctx, clampLimit(limit))
}

// SetAvatarImage uploads an avatar picture and stores its URL.
func (s *ProfileService) SetAvatarImage(ctx context.Context, userID string, u *Upload) (*model.Profile, error) {
	url, err := storeImage(ctx, s.blobs, "avatars", userID, u)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Profiles.SetAvatarURL(ctx, userID, url)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// SetPremium toggles a user's premium entitlement.
func (s *ProfileService) SetPremium(ctx context.Context, userID string, premium bool) (*model.Profile, error) {
	var p *model.Profile
	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		var err error
		p, err = r.Profiles.SetPremium(ctx, userID, premium)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	log.Info().Str("user_id", userID).Bool("premium", premium).Msg("Premium changed")
	return p, nil
}

// SetRole changes a user's role.
func (s *ProfileService) SetRole(ctx context.Context, userID string, role model.Role) (*model.Profile, error) {
	p, err := s.store.Profiles.SetRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return p, nil
}

// ApplyInactivityDecay lowers the energy of every user inactive for at least
// a day by the decay still owed for the current inactivity run. Returns the
// number of profiles changed.
func (s *ProfileService) ApplyInactivityDecay(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.store.Profiles.ListInactiveSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, c := range candidates {
		days := challenge.InactiveDays(c.LastActiveAt, now)
		delta := energy.DecayDelta(c.DecayDaysApplied, days)
		if delta == 0 {
			continue
		}
		ok, err := s.store.Profiles.ApplyDecay(ctx, c, delta, days)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}
