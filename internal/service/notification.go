package service

import (
	"context"

	"github.com/google/uuid"

	"calixo/internal/model"
	"calixo/internal/repository"
)

// NotificationService reads and acknowledges notifications.
type NotificationService struct {
	store *repository.Store
}

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(store *repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unseenOnly bool, limit int) ([]*model.Notification, error) {
	return s.store.Notifications.List(ctx, userID, unseenOnly, clampLimit(limit))
}

// MarkSeen marks one notification of the caller as seen.
func (s *NotificationService) MarkSeen(ctx context.Context, userID string, id uuid.UUID) error {
	return translate(s.store.Notifications.MarkSeen(ctx, userID, id))
}

// MarkAllSeen marks every notification of the caller as seen.
func (s *NotificationService) MarkAllSeen(ctx context.Context, userID string) (int64, error) {
	return s.store.Notifications.MarkAllSeen(ctx, userID)
}
