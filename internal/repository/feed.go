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

// FeedRepository handles the follow graph and feed items.
type FeedRepository struct {
	db DBTX
}

// NewFeedRepository creates a new FeedRepository instance.
func NewFeedRepository(db DBTX) *FeedRepository {
	return &FeedRepository{db: db}
}

// Follow creates a follow edge. The bool is false when the edge already existed.
func (r *FeedRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	const query = `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to follow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unfollow removes a follow edge. The bool is false when there was none.
func (r *FeedRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to unfollow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FollowCounts returns how many users follow userID and how many it follows.
func (r *FeedRepository) FollowCounts(ctx context.Context, userID string) (followers, following int, err error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM follows WHERE followee_id = $1),
			(SELECT COUNT(*) FROM follows WHERE follower_id = $1)
	`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&followers, &following); err != nil {
		return 0, 0, fmt.Errorf("failed to count follows: %w", err)
	}
	return followers, following, nil
}

// CreateItem appends a feed item.
func (r *FeedRepository) CreateItem(ctx context.Context, it *model.FeedItem) error {
	const query = `
		INSERT INTO feed_items (id, user_id, kind, content, image_url, challenge_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query, it.ID, it.UserID, it.Kind, it.Content, it.ImageURL, it.ChallengeID).Scan(&it.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feed item: %w", err)
	}
	return nil
}

// GetItem retrieves one feed item.
func (r *FeedRepository) GetItem(ctx context.Context, id uuid.UUID) (*model.FeedItem, error) {
	const query = `
		SELECT f.id, f.user_id, p.username, f.kind, f.content, f.image_url, f.challenge_id, f.created_at
		FROM feed_items f
		JOIN profiles p ON p.user_id = f.user_id
		WHERE f.id = $1
	`

	it, err := scanFeedItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedItemNotFound
		}
		return nil, fmt.Errorf("failed to get feed item: %w", err)
	}
	return it, nil
}

// DeleteItem removes a feed item. Used by moderation.
func (r *FeedRepository) DeleteItem(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM feed_items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete feed item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListFeed returns items by userID and the users it follows created before
// `before`, newest first.
func (r *FeedRepository) ListFeed(ctx context.Context, userID string, before time.Time, limit int) ([]*model.FeedItem, error) {
	const query = `
		SELECT f.id, f.user_id, p.username, f.kind, f.content, f.image_url, f.challenge_id, f.created_at
		FROM feed_items f
		JOIN profiles p ON p.user_id = f.user_id
		WHERE (f.user_id = $1 OR f.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1))
		  AND f.created_at < $2
		ORDER BY f.created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	var out []*model.FeedItem
	for rows.Next() {
		it, err := scanFeedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed: %w", err)
	}
	return out, nil
}

func scanFeedItem(row rowScanner) (*model.FeedItem, error) {
	var it model.FeedItem
	err := row.Scan(&it.ID, &it.UserID, &it.Username, &it.Kind, &it.Content, &it.ImageURL, &it.ChallengeID, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
