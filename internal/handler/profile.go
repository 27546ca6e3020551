package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/service"
)

// ProfileHandler serves the caller's profile, ledger and the leaderboard.
type ProfileHandler struct {
	profiles  *service.ProfileService
	maxUpload int64
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, maxUpload int64) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, maxUpload: maxUpload}
}

// Me handles GET /me.
func (h *ProfileHandler) Me(c *gin.Context) {
	view, err := h.profiles.Get(c, userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	// Bootstrap admins are not stored with the admin role.
	view.Role = CurrentProfile(c).Role
	c.JSON(http.StatusOK, view)
}

// Transactions handles GET /me/transactions.
func (h *ProfileHandler) Transactions(c *gin.Context) {
	txs, err := h.profiles.Transactions(c, userID(c), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// AvatarImage handles POST /me/avatar-image (multipart field "image").
func (h *ProfileHandler) AvatarImage(c *gin.Context) {
	u, closeFn, ok := requiredImage(c, "image", h.maxUpload)
	if !ok {
		return
	}
	defer closeFn()

	p, err := h.profiles.SetAvatarImage(c, userID(c), u)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Leaderboard handles GET /leaderboard.
func (h *ProfileHandler) Leaderboard(c *gin.Context) {
	top, err := h.profiles.Leaderboard(c, intQuery(c, "limit", 10))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": top})
}
