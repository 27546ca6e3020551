package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"calixo/internal/apperr"
	"calixo/internal/service"
)

// SocialHandler serves follows, the feed and social invitations.
type SocialHandler struct {
	social    *service.SocialService
	maxUpload int64
}

// NewSocialHandler creates a new SocialHandler.
func NewSocialHandler(social *service.SocialService, maxUpload int64) *SocialHandler {
	return &SocialHandler{social: social, maxUpload: maxUpload}
}

type postRequest struct {
	Content string `json:"content" form:"content" binding:"max=2000"`
}

type inviteRequest struct {
	ChallengeID uuid.UUID `json:"challengeId" binding:"required"`
	InviteeID   string    `json:"inviteeId" binding:"required"`
}

// Follow handles POST /users/:id/follow.
func (h *SocialHandler) Follow(c *gin.Context) {
	if err := h.social.Follow(c, userID(c), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unfollow handles DELETE /users/:id/follow.
func (h *SocialHandler) Unfollow(c *gin.Context) {
	if err := h.social.Unfollow(c, userID(c), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Feed handles GET /feed?before=&limit=.
func (h *SocialHandler) Feed(c *gin.Context) {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			Error(c, apperr.Validation("before must be an RFC 3339 timestamp"))
			return
		}
		before = t
	}

	items, err := h.social.Feed(c, userID(c), before, intQuery(c, "limit", 20))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Post handles POST /feed. Accepts JSON, or a multipart form with a
// "content" field and an optional "image" file.
func (h *SocialHandler) Post(c *gin.Context) {
	var (
		req   postRequest
		image *service.Upload
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			Error(c, bindError(err))
			return
		}
		u, closeFn, err := formImage(c, "image", h.maxUpload)
		if err != nil {
			Error(c, err)
			return
		}
		if closeFn != nil {
			defer closeFn()
		}
		image = u
	} else if !bind(c, &req) {
		return
	}

	item, err := h.social.Post(c, userID(c), req.Content, image)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Invite handles POST /social/invites.
func (h *SocialHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if !bind(c, &req) {
		return
	}
	ss, err := h.social.Invite(c, userID(c), req.ChallengeID, req.InviteeID)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, ss)
}

// ListInvites handles GET /social/invites.
func (h *SocialHandler) ListInvites(c *gin.Context) {
	invites, err := h.social.ListInvites(c, userID(c), intQuery(c, "limit", 20))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// Accept handles POST /social/invites/:id/accept.
func (h *SocialHandler) Accept(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrInviteNotFound)
	if !ok {
		return
	}
	ss, err := h.social.Accept(c, userID(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ss)
}

// Decline handles POST /social/invites/:id/decline.
func (h *SocialHandler) Decline(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrInviteNotFound)
	if !ok {
		return
	}
	ss, err := h.social.Decline(c, userID(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ss)
}
