package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

const profileColumns = `user_id, username, avatar_url, role, coins, is_premium, streak,
	avatar_energy, last_active_at, decay_days_applied, created_at, updated_at`

// ProfileRepository handles profile persistence.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.AvatarURL,
		&p.Role,
		&p.Coins,
		&p.IsPremium,
		&p.Streak,
		&p.AvatarEnergy,
		&p.LastActiveAt,
		&p.DecayDaysApplied,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, args ...any) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the profile of userID, creating it with zero coins and
// full energy on first sight. The bool reports whether a row was created.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID, username string) (*model.Profile, bool, error) {
	query := `
		INSERT INTO profiles (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.QueryRow(ctx, query, userID, username))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	// Row already existed.
	p, err = r.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// GetByID retrieves a profile by user ID.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, userID string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
}

// GetForUpdate retrieves a profile and locks its row until the enclosing
// transaction ends. Only meaningful inside Store.InTx.
func (r *ProfileRepository) GetForUpdate(ctx context.Context, userID string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID)
}

// Credit adds amount coins and returns the new balance.
func (r *ProfileRepository) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	const query = `
		UPDATE profiles
		SET coins = coins + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING coins
	`

	var coins int64
	if err := r.db.QueryRow(ctx, query, userID, amount).Scan(&coins); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to credit coins: %w", err)
	}
	return coins, nil
}

// Debit subtracts amount coins only if the balance covers it and returns the
// new balance. Returns ErrInsufficientCoins when it does not.
func (r *ProfileRepository) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	const query = `
		UPDATE profiles
		SET coins = coins - $2, updated_at = NOW()
		WHERE user_id = $1 AND coins >= $2
		RETURNING coins
	`

	var coins int64
	if err := r.db.QueryRow(ctx, query, userID, amount).Scan(&coins); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientCoins
		}
		return 0, fmt.Errorf("failed to debit coins: %w", err)
	}
	return coins, nil
}

// RecordActivity stores the post-completion energy and streak, marks the user
// active at `at` and restarts inactivity decay bookkeeping.
func (r *ProfileRepository) RecordActivity(ctx context.Context, userID string, energy, streak int, at time.Time) error {
	const query = `
		UPDATE profiles
		SET avatar_energy = $2, streak = $3, last_active_at = $4,
		    decay_days_applied = 0, updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.db.Exec(ctx, query, userID, energy, streak, at)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetPremium toggles the premium entitlement.
func (r *ProfileRepository) SetPremium(ctx context.Context, userID string, premium bool) (*model.Profile, error) {
	query := `
		UPDATE profiles SET is_premium = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns
	return r.getOne(ctx, query, userID, premium)
}

// SetRole changes a user's role.
func (r *ProfileRepository) SetRole(ctx context.Context, userID string, role model.Role) (*model.Profile, error) {
	query := `
		UPDATE profiles SET role = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns
	return r.getOne(ctx, query, userID, role)
}

// SetAvatarURL stores the uploaded avatar image URL.
func (r *ProfileRepository) SetAvatarURL(ctx context.Context, userID, url string) (*model.Profile, error) {
	query := `
		UPDATE profiles SET avatar_url = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns
	return r.getOne(ctx, query, userID, url)
}

// UpdateUsername updates the display name if it changed.
func (r *ProfileRepository) UpdateUsername(ctx context.Context, userID, username string) error {
	const query = `
		UPDATE profiles SET username = $2, updated_at = NOW()
		WHERE user_id = $1 AND username <> $2
	`
	if _, err := r.db.Exec(ctx, query, userID, username); err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return nil
}

// GetTopByCoins retrieves the top users by coin balance.
func (r *ProfileRepository) GetTopByCoins(ctx context.Context, limit int) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY coins DESC, user_id
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// DecayCandidate is a profile that has been inactive for at least a day.
type DecayCandidate struct {
	UserID           string
	AvatarEnergy     int
	LastActiveAt     time.Time
	DecayDaysApplied int
}

// ListInactiveSince returns profiles last active before cutoff.
func (r *ProfileRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]DecayCandidate, error) {
	const query = `
		SELECT user_id, avatar_energy, last_active_at, decay_days_applied
		FROM profiles
		WHERE last_active_at IS NOT NULL AND last_active_at < $1
	`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive profiles: %w", err)
	}
	defer rows.Close()

	var out []DecayCandidate
	for rows.Next() {
		var c DecayCandidate
		if err := rows.Scan(&c.UserID, &c.AvatarEnergy, &c.LastActiveAt, &c.DecayDaysApplied); err != nil {
			return nil, fmt.Errorf("failed to scan inactive profile: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inactive profiles: %w", err)
	}
	return out, nil
}

// ApplyDecay lowers energy by delta and records days as applied. The update is
// skipped (false) when another writer changed decay_days_applied or recorded
// activity since the candidate was read.
func (r *ProfileRepository) ApplyDecay(ctx context.Context, c DecayCandidate, delta, days int) (bool, error) {
	const query = `
		UPDATE profiles
		SET avatar_energy = GREATEST(0, avatar_energy - $2),
		    decay_days_applied = $3, updated_at = NOW()
		WHERE user_id = $1 AND decay_days_applied = $4 AND last_active_at = $5
	`

	tag, err := r.db.Exec(ctx, query, c.UserID, delta, days, c.DecayDaysApplied, c.LastActiveAt)
	if err != nil {
		return false, fmt.Errorf("failed to apply decay: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
