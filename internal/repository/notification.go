package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"calixo/internal/model"
)

// NotificationRepository handles notification persistence.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository instance.
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification for userID. The type is taken from the payload.
func (r *NotificationRepository) Create(ctx context.Context, userID string, payload model.NotificationPayload) (*model.Notification, error) {
	const query = `
		INSERT INTO notifications (id, user_id, type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	n := &model.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    payload.NotificationType(),
		Payload: payload,
	}
	if err := r.db.QueryRow(ctx, query, n.ID, n.UserID, n.Type, payload).Scan(&n.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID string, unseenOnly bool, limit int) ([]*model.Notification, error) {
	const query = `
		SELECT id, user_id, type, payload, seen, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT seen)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, userID, unseenOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		var raw []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &raw, &n.Seen, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Payload, err = model.DecodeNotificationPayload(n.Type, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}

// MarkSeen marks one of the user's notifications as seen.
func (r *NotificationRepository) MarkSeen(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET seen = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllSeen marks every unseen notification of the user as seen and
// returns how many changed.
func (r *NotificationRepository) MarkAllSeen(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET seen = TRUE WHERE user_id = $1 AND NOT seen`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications seen: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UnseenCount returns the number of unseen notifications.
func (r *NotificationRepository) UnseenCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT seen`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
