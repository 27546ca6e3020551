package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/challenge"
	"calixo/internal/config"
	"calixo/internal/energy"
	"calixo/internal/model"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
)

// ChallengeService handles the challenge catalog and the per-user session
// state machine: in_progress -> completed | failed.
type ChallengeService struct {
	store    *repository.Store
	userLock *lock.UserLock
	kinds    *challenge.Registry
	cfg      config.ChallengesConfig
	loc      *time.Location
	now      func() time.Time
}

// NewChallengeService creates a new ChallengeService instance.
func NewChallengeService(
	store *repository.Store,
	userLock *lock.UserLock,
	kinds *challenge.Registry,
	cfg config.ChallengesConfig,
) *ChallengeService {
	return &ChallengeService{
		store:    store,
		userLock: userLock,
		kinds:    kinds,
		cfg:      cfg,
		loc:      cfg.Location(),
		now:      time.Now,
	}
}

// DailyLimits are the per-day caps on capped challenge starts.
type DailyLimits struct {
	Free    int `json:"free" binding:"gte=0,lte=100"`
	Premium int `json:"premium" binding:"gte=0,lte=100"`
}

// Usage summarizes the caller's challenge usage for today.
type Usage struct {
	DailyUsed       int        `json:"dailyUsed"`
	DailyLimit      int        `json:"dailyLimit"`
	IsPremium       bool       `json:"isPremium"`
	ActiveSessionID *uuid.UUID `json:"activeSessionId,omitempty"`
}

// CatalogEntry is a definition annotated with whether the caller may start it.
type CatalogEntry struct {
	*model.ChallengeDefinition
	CanStart bool   `json:"canStart"`
	Reason   string `json:"reason,omitempty"`
}

// Catalog is the challenge list shown to one user.
type Catalog struct {
	Challenges []CatalogEntry `json:"challenges"`
	Usage      Usage          `json:"usage"`
}

// CompletionResult reports what a completed challenge granted.
type CompletionResult struct {
	Session      *model.ChallengeSession `json:"session"`
	CoinsEarned  int64                   `json:"coinsEarned"`
	Coins        int64                   `json:"coins"`
	AvatarEnergy int                     `json:"avatarEnergy"`
	EnergyLevel  energy.Level            `json:"energyLevel"`
	Streak       int                     `json:"streak"`
}

// DailyLimits returns the configured caps, preferring the settings table over
// the static configuration.
func (s *ChallengeService) DailyLimits(ctx context.Context) (DailyLimits, error) {
	return dailyLimits(ctx, s.store.Repositories, s.cfg)
}

func dailyLimits(ctx context.Context, r *repository.Repositories, cfg config.ChallengesConfig) (DailyLimits, error) {
	free, err := r.Settings.GetInt(ctx, model.SettingDailyLimitFree, cfg.DailyLimitFree)
	if err != nil {
		return DailyLimits{}, err
	}
	premium, err := r.Settings.GetInt(ctx, model.SettingDailyLimitPremium, cfg.DailyLimitPremium)
	if err != nil {
		return DailyLimits{}, err
	}
	return DailyLimits{Free: free, Premium: premium}, nil
}

// SetDailyLimits stores new caps.
func (s *ChallengeService) SetDailyLimits(ctx context.Context, limits DailyLimits) (DailyLimits, error) {
	if limits.Free < 0 || limits.Premium < 0 {
		return DailyLimits{}, apperr.Validation("daily limits must not be negative")
	}
	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		if err := r.Settings.Set(ctx, model.SettingDailyLimitFree, strconv.Itoa(limits.Free)); err != nil {
			return err
		}
		return r.Settings.Set(ctx, model.SettingDailyLimitPremium, strconv.Itoa(limits.Premium))
	})
	if err != nil {
		return DailyLimits{}, err
	}
	log.Info().Int("free", limits.Free).Int("premium", limits.Premium).Msg("Daily challenge limits updated")
	return limits, nil
}

// dailyUsage returns today's capped starts and the cap that applies to p.
func (s *ChallengeService) dailyUsage(ctx context.Context, r *repository.Repositories, p *model.Profile, now time.Time) (used, limit int, err error) {
	limits, err := dailyLimits(ctx, r, s.cfg)
	if err != nil {
		return 0, 0, err
	}
	from, to := challenge.DayWindow(now, s.loc)
	used, err = r.Sessions.CountStartedBetween(ctx, p.UserID, model.ChallengeDaily, from, to)
	if err != nil {
		return 0, 0, err
	}
	return used, challenge.DailyCap(p.IsPremium, limits.Free, limits.Premium), nil
}

// List returns active definitions, optionally of one type, annotated with
// canStart for the caller.
func (s *ChallengeService) List(ctx context.Context, userID string, typ *model.ChallengeType) (*Catalog, error) {
	p, err := s.store.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	defs, err := s.store.Challenges.List(ctx, typ, true)
	if err != nil {
		return nil, err
	}
	used, limit, err := s.dailyUsage(ctx, s.store.Repositories, p, s.now())
	if err != nil {
		return nil, err
	}

	usage := Usage{DailyUsed: used, DailyLimit: limit, IsPremium: p.IsPremium}
	active, err := s.store.Sessions.GetActive(ctx, userID)
	switch {
	case err == nil:
		usage.ActiveSessionID = &active.ID
	case !errors.Is(err, repository.ErrSessionNotFound):
		return nil, err
	}

	return &Catalog{
		Challenges: annotateCatalog(defs, s.kinds, used, limit, p.IsPremium),
		Usage:      usage,
	}, nil
}

// annotateCatalog marks capped definitions unstartable once the cap is used.
// Uncapped definitions are always startable here; the one-active-session rule
// is enforced on start.
func annotateCatalog(defs []*model.ChallengeDefinition, kinds *challenge.Registry, used, limit int, premium bool) []CatalogEntry {
	reason := challenge.CapReason(used, limit, premium)
	entries := make([]CatalogEntry, 0, len(defs))
	for _, def := range defs {
		e := CatalogEntry{ChallengeDefinition: def, CanStart: true}
		if k, ok := kinds.Get(def.Type); ok && k.DailyCapped() && reason != "" {
			e.CanStart = false
			e.Reason = reason
		}
		entries = append(entries, e)
	}
	return entries
}

// Start begins an attempt at a challenge. Preconditions, in order: the
// definition exists and is active, the user has no session in progress, the
// daily cap allows it, and a custom focus duration is within bounds.
func (s *ChallengeService) Start(ctx context.Context, userID string, challengeID uuid.UUID, customDuration *int) (*model.ChallengeSession, error) {
	var session *model.ChallengeSession

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		now := s.now()

		def, err := r.Challenges.GetByID(ctx, challengeID)
		if err != nil {
			return err
		}
		if !def.IsActive {
			return ErrChallengeNotFound
		}

		p, err := r.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if _, err := r.Sessions.GetActive(ctx, userID); err == nil {
			return ErrActiveSession
		} else if !errors.Is(err, repository.ErrSessionNotFound) {
			return err
		}

		kind, ok := s.kinds.Get(def.Type)
		if !ok {
			return fmt.Errorf("no rules registered for challenge type %q", def.Type)
		}

		if kind.DailyCapped() {
			used, limit, err := s.dailyUsage(ctx, r, p, now)
			if err != nil {
				return err
			}
			if reason := challenge.CapReason(used, limit, p.IsPremium); reason != "" {
				return apperr.New(apperr.KindStateConflict, reason)
			}
		}

		duration, err := kind.SessionDuration(def, customDuration)
		if err != nil {
			return err
		}

		session = &model.ChallengeSession{
			ID:          uuid.New(),
			UserID:      userID,
			ChallengeID: def.ID,
			Status:      model.SessionInProgress,
			StartedAt:   now,
			SessionData: model.SessionData{
				DurationMinutes: duration,
				StartTime:       now,
				Interruptions:   0,
			},
			Challenge: def,
		}
		return r.Sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("session_id", session.ID.String()).
		Str("type", string(session.Challenge.Type)).
		Msg("Challenge started")
	return session, nil
}

// lockOwnedSession locks the caller's profile then the session, and checks
// the session belongs to the caller and is still in progress.
func lockOwnedSession(ctx context.Context, r *repository.Repositories, userID string, sessionID uuid.UUID) (*model.Profile, *model.ChallengeSession, error) {
	p, err := r.Profiles.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := r.Sessions.GetForUpdate(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.UserID != userID {
		return nil, nil, ErrSessionNotFound
	}
	if sess.Status != model.SessionInProgress {
		return nil, nil, ErrSessionFinished
	}
	return p, sess, nil
}

// Cancel aborts an in-progress attempt. Cancellation is a failure with the
// cancellation recorded in the session data.
func (s *ChallengeService) Cancel(ctx context.Context, userID string, sessionID uuid.UUID, reason string) (*model.ChallengeSession, error) {
	var sess *model.ChallengeSession

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		var err error
		_, sess, err = lockOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		sess.SessionData.Cancellation = &model.Cancellation{
			Reason:      strings.TrimSpace(reason),
			CancelledAt: now,
		}
		if err := r.Sessions.Finish(ctx, sess.ID, model.SessionFailed, now, sess.SessionData); err != nil {
			return err
		}
		sess.Status = model.SessionFailed
		sess.FailedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("session_id", sessionID.String()).Msg("Challenge cancelled")
	return sess, nil
}

// Fail marks an in-progress attempt as failed. When metrics are supplied they
// are stored with the failure and appended to the focus audit trail.
func (s *ChallengeService) Fail(ctx context.Context, userID string, sessionID uuid.UUID, reason string, metrics *model.AttemptMetrics) (*model.ChallengeSession, error) {
	var sess *model.ChallengeSession

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		var err error
		_, sess, err = lockOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		failure := &model.Failure{Reason: strings.TrimSpace(reason)}
		if metrics != nil {
			failure.DurationSeconds = metrics.DurationSeconds
			failure.Interruptions = metrics.Interruptions
			sess.SessionData.Interruptions = metrics.Interruptions
		}
		sess.SessionData.Failure = failure

		if err := r.Sessions.Finish(ctx, sess.ID, model.SessionFailed, now, sess.SessionData); err != nil {
			return err
		}
		sess.Status = model.SessionFailed
		sess.FailedAt = &now

		if metrics != nil {
			return r.Sessions.CreateFocusSession(ctx, &model.FocusSession{
				UserID:                userID,
				UserChallengeID:       sess.ID,
				DurationSeconds:       metrics.DurationSeconds,
				Interruptions:         metrics.Interruptions,
				CompletedSuccessfully: false,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("session_id", sessionID.String()).Msg("Challenge failed")
	return sess, nil
}

// Complete finishes an in-progress attempt successfully: the reward is
// credited through an earn ledger entry, energy and streak are updated and a
// completion appears in the feed.
func (s *ChallengeService) Complete(ctx context.Context, userID string, sessionID uuid.UUID, metrics *model.AttemptMetrics) (*CompletionResult, error) {
	var result CompletionResult

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		p, sess, err := lockOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}
		def := sess.Challenge
		now := s.now()

		completion := &model.Completion{}
		if metrics != nil {
			completion.DurationSeconds = metrics.DurationSeconds
			completion.Interruptions = metrics.Interruptions
			sess.SessionData.Interruptions = metrics.Interruptions
		}
		sess.SessionData.Completion = completion

		if err := r.Sessions.Finish(ctx, sess.ID, model.SessionCompleted, now, sess.SessionData); err != nil {
			return err
		}
		sess.Status = model.SessionCompleted
		sess.CompletedAt = &now

		coins := p.Coins
		if def.Reward > 0 {
			desc := "Challenge completed: " + def.Title
			ref := repository.LedgerRef{ChallengeID: &def.ID}
			if _, err := r.Transactions.Create(ctx, userID, def.Reward, model.TxTypeEarn, ref, &desc); err != nil {
				return err
			}
			if coins, err = r.Profiles.Credit(ctx, userID, def.Reward); err != nil {
				return err
			}
		}

		newEnergy := energy.AfterCompletion(p.AvatarEnergy, def.Type)
		streak := challenge.NextStreak(p.Streak, p.LastActiveAt, now, s.loc)
		if err := r.Profiles.RecordActivity(ctx, userID, newEnergy, streak, now); err != nil {
			return err
		}

		if metrics != nil {
			err := r.Sessions.CreateFocusSession(ctx, &model.FocusSession{
				UserID:                userID,
				UserChallengeID:       sess.ID,
				DurationSeconds:       metrics.DurationSeconds,
				Interruptions:         metrics.Interruptions,
				CompletedSuccessfully: true,
			})
			if err != nil {
				return err
			}
		}

		err = r.Feed.CreateItem(ctx, &model.FeedItem{
			UserID:      userID,
			Kind:        model.FeedItemChallengeCompleted,
			Content:     def.Title,
			ChallengeID: &def.ID,
		})
		if err != nil {
			return err
		}

		result = CompletionResult{
			Session:      sess,
			CoinsEarned:  def.Reward,
			Coins:        coins,
			AvatarEnergy: newEnergy,
			EnergyLevel:  energy.LevelOf(newEnergy),
			Streak:       streak,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("session_id", sessionID.String()).
		Int64("reward", result.CoinsEarned).
		Int("energy", result.AvatarEnergy).
		Msg("Challenge completed")
	return &result, nil
}

// Active returns the caller's in-progress session, or nil when there is none.
func (s *ChallengeService) Active(ctx context.Context, userID string) (*model.ChallengeSession, error) {
	sess, err := s.store.Sessions.GetActive(ctx, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil
	}
	return sess, err
}

// History returns the caller's sessions, newest first.
func (s *ChallengeService) History(ctx context.Context, userID string, limit, offset int) ([]*model.ChallengeSession, error) {
	return s.store.Sessions.History(ctx, userID, clampLimit(limit), max(offset, 0))
}

// ChallengeInput holds the editable fields of a definition.
type ChallengeInput struct {
	Type            model.ChallengeType `json:"type" binding:"required,challengetype"`
	Title           string              `json:"title" binding:"required,max=200"`
	Description     string              `json:"description"`
	Reward          int64               `json:"reward" binding:"gte=0"`
	DurationMinutes *int                `json:"durationMinutes" binding:"omitempty,gt=0"`
	IsActive        *bool               `json:"isActive"`
}

func (in ChallengeInput) validate(maxFocus int) error {
	if !in.Type.Valid() {
		return apperr.Validation("unknown challenge type")
	}
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if in.Reward < 0 {
		return apperr.Validation("reward must not be negative")
	}
	if in.DurationMinutes != nil && (*in.DurationMinutes <= 0 || *in.DurationMinutes > maxFocus) {
		return apperr.Validation(fmt.Sprintf("duration must be between 1 and %d minutes", maxFocus))
	}
	return nil
}

func (in ChallengeInput) definition(id uuid.UUID) *model.ChallengeDefinition {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &model.ChallengeDefinition{
		ID:              id,
		Type:            in.Type,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Reward:          in.Reward,
		DurationMinutes: in.DurationMinutes,
		IsActive:        active,
	}
}

// CreateDefinition adds a challenge to the catalog.
func (s *ChallengeService) CreateDefinition(ctx context.Context, in ChallengeInput) (*model.ChallengeDefinition, error) {
	if err := in.validate(s.cfg.MaxFocusMinutes); err != nil {
		return nil, err
	}
	def, err := s.store.Challenges.Create(ctx, in.definition(uuid.New()))
	if err != nil {
		return nil, err
	}
	log.Info().Str("challenge_id", def.ID.String()).Str("title", def.Title).Msg("Challenge created")
	return def, nil
}

// UpdateDefinition overwrites a definition.
func (s *ChallengeService) UpdateDefinition(ctx context.Context, id uuid.UUID, in ChallengeInput) (*model.ChallengeDefinition, error) {
	if err := in.validate(s.cfg.MaxFocusMinutes); err != nil {
		return nil, err
	}
	def, err := s.store.Challenges.Update(ctx, in.definition(id))
	if err != nil {
		return nil, translate(err)
	}
	return def, nil
}

// DeactivateDefinition hides a definition from the catalog. Definitions are
// never deleted so sessions and ledger entries keep their reference.
func (s *ChallengeService) DeactivateDefinition(ctx context.Context, id uuid.UUID) (*model.ChallengeDefinition, error) {
	def, err := s.store.Challenges.SetActive(ctx, id, false)
	if err != nil {
		return nil, translate(err)
	}
	log.Info().Str("challenge_id", id.String()).Msg("Challenge deactivated")
	return def, nil
}

// ListDefinitions returns every definition for administration.
func (s *ChallengeService) ListDefinitions(ctx context.Context) ([]*model.ChallengeDefinition, error) {
	return s.store.Challenges.List(ctx, nil, false)
}
