package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/model"
	"calixo/internal/service"
)

// AdminHandler serves catalog management, user entitlements and settings.
type AdminHandler struct {
	challenges *service.ChallengeService
	items      *service.StoreService
	coupons    *service.CouponService
	profiles   *service.ProfileService
	maxUpload  int64
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	challenges *service.ChallengeService,
	items *service.StoreService,
	coupons *service.CouponService,
	profiles *service.ProfileService,
	maxUpload int64,
) *AdminHandler {
	return &AdminHandler{
		challenges: challenges,
		items:      items,
		coupons:    coupons,
		profiles:   profiles,
		maxUpload:  maxUpload,
	}
}

type premiumRequest struct {
	IsPremium *bool `json:"isPremium" binding:"required"`
}

type roleRequest struct {
	Role model.Role `json:"role" binding:"required,oneof=user moderator admin"`
}

// ListChallenges handles GET /admin/challenges.
func (h *AdminHandler) ListChallenges(c *gin.Context) {
	defs, err := h.challenges.ListDefinitions(c)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenges": defs})
}

// CreateChallenge handles POST /admin/challenges.
func (h *AdminHandler) CreateChallenge(c *gin.Context) {
	var in service.ChallengeInput
	if !bind(c, &in) {
		return
	}
	def, err := h.challenges.CreateDefinition(c, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

// UpdateChallenge handles PUT /admin/challenges/:id.
func (h *AdminHandler) UpdateChallenge(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrChallengeNotFound)
	if !ok {
		return
	}
	var in service.ChallengeInput
	if !bind(c, &in) {
		return
	}
	def, err := h.challenges.UpdateDefinition(c, id, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// DeactivateChallenge handles DELETE /admin/challenges/:id.
func (h *AdminHandler) DeactivateChallenge(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrChallengeNotFound)
	if !ok {
		return
	}
	def, err := h.challenges.DeactivateDefinition(c, id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// CreateItem handles POST /admin/store/items.
func (h *AdminHandler) CreateItem(c *gin.Context) {
	var in service.ItemInput
	if !bind(c, &in) {
		return
	}
	it, err := h.items.CreateItem(c, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// UpdateItem handles PUT /admin/store/items/:id.
func (h *AdminHandler) UpdateItem(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrItemNotFound)
	if !ok {
		return
	}
	var in service.ItemInput
	if !bind(c, &in) {
		return
	}
	it, err := h.items.UpdateItem(c, id, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// ItemImage handles POST /admin/store/items/:id/image (multipart field "image").
func (h *AdminHandler) ItemImage(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrItemNotFound)
	if !ok {
		return
	}
	u, closeFn, ok := requiredImage(c, "image", h.maxUpload)
	if !ok {
		return
	}
	defer closeFn()

	it, err := h.items.SetItemImage(c, userID(c), id, u)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// DeactivateItem handles DELETE /admin/store/items/:id.
func (h *AdminHandler) DeactivateItem(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrItemNotFound)
	if !ok {
		return
	}
	it, err := h.items.DeactivateItem(c, id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// ListCoupons handles GET /admin/coupons.
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// CreateCoupon handles POST /admin/coupons.
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var in service.CouponInput
	if !bind(c, &in) {
		return
	}
	cp, err := h.coupons.Create(c, in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

// DeactivateCoupon handles DELETE /admin/coupons/:id.
func (h *AdminHandler) DeactivateCoupon(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrCouponInvalid)
	if !ok {
		return
	}
	cp, err := h.coupons.Deactivate(c, id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

// SetPremium handles PUT /admin/users/:id/premium.
func (h *AdminHandler) SetPremium(c *gin.Context) {
	var req premiumRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.SetPremium(c, c.Param("id"), *req.IsPremium)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetRole handles PUT /admin/users/:id/role.
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.SetRole(c, c.Param("id"), req.Role)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// LedgerAudit handles GET /admin/users/:id/ledger-audit.
func (h *AdminHandler) LedgerAudit(c *gin.Context) {
	audit, err := h.profiles.AuditLedger(c, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// DailyLimits handles GET /admin/settings/daily-limits.
func (h *AdminHandler) DailyLimits(c *gin.Context) {
	limits, err := h.challenges.DailyLimits(c)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// SetDailyLimits handles PUT /admin/settings/daily-limits.
func (h *AdminHandler) SetDailyLimits(c *gin.Context) {
	var limits service.DailyLimits
	if !bind(c, &limits) {
		return
	}
	limits, err := h.challenges.SetDailyLimits(c, limits)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}
