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

const socialColumns = `id, challenge_id, inviter_id, invitee_id, status, created_at, responded_at`

// SocialRepository handles social session persistence.
type SocialRepository struct {
	db DBTX
}

// NewSocialRepository creates a new SocialRepository instance.
func NewSocialRepository(db DBTX) *SocialRepository {
	return &SocialRepository{db: db}
}

func scanSocial(row rowScanner) (*model.SocialSession, error) {
	var s model.SocialSession
	err := row.Scan(&s.ID, &s.ChallengeID, &s.InviterID, &s.InviteeID, &s.Status, &s.CreatedAt, &s.RespondedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SocialRepository) getOne(ctx context.Context, query string, args ...any) (*model.SocialSession, error) {
	s, err := scanSocial(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSocialSessionNotFound
		}
		return nil, fmt.Errorf("failed to get social session: %w", err)
	}
	return s, nil
}

// Create stores a pending invitation.
func (r *SocialRepository) Create(ctx context.Context, challengeID uuid.UUID, inviterID, inviteeID string) (*model.SocialSession, error) {
	query := `
		INSERT INTO social_sessions (id, challenge_id, inviter_id, invitee_id, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + socialColumns
	return r.getOne(ctx, query, uuid.New(), challengeID, inviterID, inviteeID)
}

// GetForUpdate retrieves and locks a social session.
func (r *SocialRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.SocialSession, error) {
	return r.getOne(ctx, `SELECT `+socialColumns+` FROM social_sessions WHERE id = $1 FOR UPDATE`, id)
}

// Respond moves a pending session to status and stamps respondedAt.
func (r *SocialRepository) Respond(ctx context.Context, id uuid.UUID, status model.SocialSessionStatus, at time.Time) (*model.SocialSession, error) {
	query := `
		UPDATE social_sessions SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + socialColumns
	return r.getOne(ctx, query, id, status, at)
}

// ExpirePending marks invitations created before cutoff and still pending as
// expired and returns how many changed.
func (r *SocialRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE social_sessions SET status = 'expired', responded_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire social sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListForUser returns sessions where the user is inviter or invitee, newest first.
func (r *SocialRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*model.SocialSession, error) {
	query := `SELECT ` + socialColumns + `
		FROM social_sessions
		WHERE inviter_id = $1 OR invitee_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list social sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.SocialSession
	for rows.Next() {
		s, err := scanSocial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating social sessions: %w", err)
	}
	return out, nil
}
