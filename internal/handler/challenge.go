package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/service"
)

// ChallengeHandler serves the catalog and the caller's challenge sessions.
type ChallengeHandler struct {
	challenges *service.ChallengeService
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(challenges *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

type startRequest struct {
	CustomDuration *int `json:"customDuration"`
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type failRequest struct {
	Reason      string                `json:"reason" binding:"max=500"`
	SessionData *model.AttemptMetrics `json:"sessionData"`
}

type completeRequest struct {
	SessionData *model.AttemptMetrics `json:"sessionData"`
}

// List handles GET /challenges?type=.
func (h *ChallengeHandler) List(c *gin.Context) {
	var typ *model.ChallengeType
	if raw := c.Query("type"); raw != "" {
		t := model.ChallengeType(raw)
		if !t.Valid() {
			Error(c, apperr.Validation("type must be one of daily, focus, social"))
			return
		}
		typ = &t
	}

	catalog, err := h.challenges.List(c, userID(c), typ)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// Start handles POST /challenges/:id/start.
func (h *ChallengeHandler) Start(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrChallengeNotFound)
	if !ok {
		return
	}
	var req startRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.challenges.Start(c, userID(c), id, req.CustomDuration)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// Active handles GET /user-challenges/active.
func (h *ChallengeHandler) Active(c *gin.Context) {
	sess, err := h.challenges.Active(c, userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// History handles GET /user-challenges.
func (h *ChallengeHandler) History(c *gin.Context) {
	sessions, err := h.challenges.History(c, userID(c), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Cancel handles POST /user-challenges/:id/cancel.
func (h *ChallengeHandler) Cancel(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrSessionNotFound)
	if !ok {
		return
	}
	var req cancelRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.challenges.Cancel(c, userID(c), id, req.Reason)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Fail handles POST /user-challenges/:id/fail.
func (h *ChallengeHandler) Fail(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrSessionNotFound)
	if !ok {
		return
	}
	var req failRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.challenges.Fail(c, userID(c), id, req.Reason, req.SessionData)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Complete handles POST /user-challenges/:id/complete.
func (h *ChallengeHandler) Complete(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrSessionNotFound)
	if !ok {
		return
	}
	var req completeRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.challenges.Complete(c, userID(c), id, req.SessionData)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
