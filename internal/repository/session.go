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

const sessionJoinColumns = `uc.id, uc.user_id, uc.challenge_id, uc.status, uc.started_at,
	uc.completed_at, uc.failed_at, uc.session_data,
	c.id, c.type, c.title, c.description, c.reward, c.duration_minutes, c.is_active, c.created_at, c.updated_at`

const sessionJoin = `user_challenges uc JOIN challenges c ON c.id = uc.challenge_id`

// SessionRepository handles challenge session persistence.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row rowScanner) (*model.ChallengeSession, error) {
	var s model.ChallengeSession
	var c model.ChallengeDefinition
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.ChallengeID,
		&s.Status,
		&s.StartedAt,
		&s.CompletedAt,
		&s.FailedAt,
		&s.SessionData,
		&c.ID,
		&c.Type,
		&c.Title,
		&c.Description,
		&c.Reward,
		&c.DurationMinutes,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Challenge = &c
	return &s, nil
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*model.ChallengeSession, error) {
	s, err := scanSession(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get challenge session: %w", err)
	}
	return s, nil
}

// Create inserts an in-progress session. Returns ErrActiveSessionExists when
// the user already has one.
func (r *SessionRepository) Create(ctx context.Context, s *model.ChallengeSession) error {
	const query = `
		INSERT INTO user_challenges (id, user_id, challenge_id, status, started_at, session_data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query, s.ID, s.UserID, s.ChallengeID, s.Status, s.StartedAt, s.SessionData)
	if err != nil {
		if isUniqueViolation(err, "uq_user_challenges_one_active") {
			return ErrActiveSessionExists
		}
		return fmt.Errorf("failed to create challenge session: %w", err)
	}
	return nil
}

// GetByID retrieves a session with its definition.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ChallengeSession, error) {
	return r.getOne(ctx, `SELECT `+sessionJoinColumns+` FROM `+sessionJoin+` WHERE uc.id = $1`, id)
}

// GetForUpdate retrieves a session and locks its row.
func (r *SessionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.ChallengeSession, error) {
	return r.getOne(ctx, `SELECT `+sessionJoinColumns+` FROM `+sessionJoin+` WHERE uc.id = $1 FOR UPDATE OF uc`, id)
}

// GetActive retrieves the user's in-progress session.
// Returns ErrSessionNotFound when there is none.
func (r *SessionRepository) GetActive(ctx context.Context, userID string) (*model.ChallengeSession, error) {
	return r.getOne(ctx, `SELECT `+sessionJoinColumns+` FROM `+sessionJoin+`
		WHERE uc.user_id = $1 AND uc.status = 'in_progress'`, userID)
}

// CountStartedBetween counts the user's sessions of definitions of type typ
// started in [from, to).
func (r *SessionRepository) CountStartedBetween(ctx context.Context, userID string, typ model.ChallengeType, from, to time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1 AND c.type = $2
		  AND uc.started_at >= $3 AND uc.started_at < $4
	`

	var n int
	if err := r.db.QueryRow(ctx, query, userID, typ, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Finish moves an in-progress session to a terminal status and stores the
// final session data. Returns ErrSessionNotInProgress if it already ended.
func (r *SessionRepository) Finish(ctx context.Context, id uuid.UUID, status model.SessionStatus, at time.Time, data model.SessionData) error {
	const query = `
		UPDATE user_challenges
		SET status = $2::text,
		    completed_at = CASE WHEN $2::text = 'completed' THEN $3::timestamptz END,
		    failed_at = CASE WHEN $2::text = 'failed' THEN $3::timestamptz END,
		    session_data = $4
		WHERE id = $1 AND status = 'in_progress'
	`

	if !status.Terminal() {
		return fmt.Errorf("cannot finish session with status %q", status)
	}
	tag, err := r.db.Exec(ctx, query, id, string(status), at, data)
	if err != nil {
		return fmt.Errorf("failed to finish challenge session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotInProgress
	}
	return nil
}

// History lists a user's sessions, newest first.
func (r *SessionRepository) History(ctx context.Context, userID string, limit, offset int) ([]*model.ChallengeSession, error) {
	query := `SELECT ` + sessionJoinColumns + ` FROM ` + sessionJoin + `
		WHERE uc.user_id = $1
		ORDER BY uc.started_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	defer rows.Close()

	var out []*model.ChallengeSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

// CreateFocusSession appends a focus audit row.
func (r *SessionRepository) CreateFocusSession(ctx context.Context, fs *model.FocusSession) error {
	const query = `
		INSERT INTO focus_sessions (id, user_id, user_challenge_id, duration_seconds, interruptions, completed_successfully)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if fs.ID == uuid.Nil {
		fs.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		fs.ID, fs.UserID, fs.UserChallengeID, fs.DurationSeconds, fs.Interruptions, fs.CompletedSuccessfully,
	).Scan(&fs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create focus session: %w", err)
	}
	return nil
}

// FocusStats summarizes a user's focus audit rows.
type FocusStats struct {
	Sessions      int   `json:"sessions"`
	Successful    int   `json:"successful"`
	TotalSeconds  int64 `json:"totalSeconds"`
	Interruptions int64 `json:"interruptions"`
}

// GetFocusStats aggregates the focus audit rows of a user.
func (r *SessionRepository) GetFocusStats(ctx context.Context, userID string) (*FocusStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE completed_successfully),
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(SUM(interruptions), 0)
		FROM focus_sessions
		WHERE user_id = $1
	`

	var st FocusStats
	if err := r.db.QueryRow(ctx, query, userID).Scan(&st.Sessions, &st.Successful, &st.TotalSeconds, &st.Interruptions); err != nil {
		return nil, fmt.Errorf("failed to get focus stats: %w", err)
	}
	return &st, nil
}
