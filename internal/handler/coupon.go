package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/service"
)

// CouponHandler serves coupon validation and purchases.
type CouponHandler struct {
	coupons *service.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(coupons *service.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

type validateCouponRequest struct {
	Code string `json:"code" binding:"required,max=40"`
}

// Validate handles POST /coupons/validate.
func (h *CouponHandler) Validate(c *gin.Context) {
	var req validateCouponRequest
	if !bind(c, &req) {
		return
	}
	v, err := h.coupons.Validate(c, req.Code)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListForSale handles GET /coupons.
func (h *CouponHandler) ListForSale(c *gin.Context) {
	coupons, err := h.coupons.ListForSale(c)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// Purchase handles POST /coupons/:id/purchase.
func (h *CouponHandler) Purchase(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrCouponNotForSale)
	if !ok {
		return
	}
	res, err := h.coupons.Purchase(c, userID(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Mine handles GET /coupons/mine.
func (h *CouponHandler) Mine(c *gin.Context) {
	coupons, err := h.coupons.Mine(c, userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}
