package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/service"
)

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	notes *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notes *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

// List handles GET /notifications?unseen=true.
func (h *NotificationHandler) List(c *gin.Context) {
	unseen, err := boolQuery(c, "unseen")
	if err != nil {
		Error(c, err)
		return
	}
	notes, err := h.notes.List(c, userID(c), unseen != nil && *unseen, intQuery(c, "limit", 20))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}

// MarkSeen handles POST /notifications/:id/seen.
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrNotificationNotFound)
	if !ok {
		return
	}
	if err := h.notes.MarkSeen(c, userID(c), id); err != nil {
		Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllSeen handles POST /notifications/seen.
func (h *NotificationHandler) MarkAllSeen(c *gin.Context) {
	n, err := h.notes.MarkAllSeen(c, userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
