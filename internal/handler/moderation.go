package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/service"
)

// ModerationHandler serves user reports and the moderation queue.
type ModerationHandler struct {
	moderation *service.ModerationService
}

// NewModerationHandler creates a new ModerationHandler.
func NewModerationHandler(moderation *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// Report handles POST /reports.
func (h *ModerationHandler) Report(c *gin.Context) {
	var in service.ReportInput
	if !bind(c, &in) {
		return
	}
	rp, err := h.moderation.Report(c, userID(c), in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, rp)
}

// List handles GET /admin/reports?status=.
func (h *ModerationHandler) List(c *gin.Context) {
	var status *model.ReportStatus
	if raw := c.Query("status"); raw != "" {
		s := model.ReportStatus(raw)
		switch s {
		case model.ReportPending, model.ReportReviewed, model.ReportResolved:
		default:
			Error(c, apperr.Validation("status must be one of pending, reviewed, resolved"))
			return
		}
		status = &s
	}

	reports, err := h.moderation.List(c, status, intQuery(c, "limit", 50))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Resolve handles POST /admin/reports/:id/resolve.
func (h *ModerationHandler) Resolve(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrReportNotFound)
	if !ok {
		return
	}
	var in service.Resolution
	if !bind(c, &in) {
		return
	}

	rp, err := h.moderation.Resolve(c, userID(c), id, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rp)
}
