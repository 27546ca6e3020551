package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

const challengeColumns = `id, type, title, description, reward, duration_minutes, is_active, created_at, updated_at`

// ChallengeRepository handles challenge definition persistence.
type ChallengeRepository struct {
	db DBTX
}

// NewChallengeRepository creates a new ChallengeRepository instance.
func NewChallengeRepository(db DBTX) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func scanChallenge(row rowScanner) (*model.ChallengeDefinition, error) {
	var c model.ChallengeDefinition
	err := row.Scan(
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
	return &c, nil
}

func (r *ChallengeRepository) getOne(ctx context.Context, query string, args ...any) (*model.ChallengeDefinition, error) {
	c, err := scanChallenge(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// Create inserts a new challenge definition.
func (r *ChallengeRepository) Create(ctx context.Context, c *model.ChallengeDefinition) (*model.ChallengeDefinition, error) {
	query := `
		INSERT INTO challenges (id, type, title, description, reward, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + challengeColumns

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	created, err := scanChallenge(r.db.QueryRow(ctx, query,
		c.ID, c.Type, c.Title, c.Description, c.Reward, c.DurationMinutes, c.IsActive))
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	return created, nil
}

// Update overwrites the editable fields of a definition.
func (r *ChallengeRepository) Update(ctx context.Context, c *model.ChallengeDefinition) (*model.ChallengeDefinition, error) {
	query := `
		UPDATE challenges
		SET type = $2, title = $3, description = $4, reward = $5,
		    duration_minutes = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + challengeColumns
	return r.getOne(ctx, query, c.ID, c.Type, c.Title, c.Description, c.Reward, c.DurationMinutes, c.IsActive)
}

// SetActive soft-activates or deactivates a definition. Definitions are never deleted.
func (r *ChallengeRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.ChallengeDefinition, error) {
	query := `
		UPDATE challenges SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + challengeColumns
	return r.getOne(ctx, query, id, active)
}

// GetByID retrieves a definition regardless of its active flag.
func (r *ChallengeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ChallengeDefinition, error) {
	return r.getOne(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
}

// List returns definitions ordered by type then reward. A nil typ means all
// types; activeOnly hides deactivated definitions.
func (r *ChallengeRepository) List(ctx context.Context, typ *model.ChallengeType, activeOnly bool) ([]*model.ChallengeDefinition, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE ($1::text IS NULL OR type = $1) AND (NOT $2 OR is_active)
		ORDER BY type, reward, title`

	var typeArg *string
	if typ != nil {
		s := string(*typ)
		typeArg = &s
	}

	rows, err := r.db.Query(ctx, query, typeArg, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var out []*model.ChallengeDefinition
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}
	return out, nil
}
