package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calixo/internal/service"
	"calixo/internal/shop"
)

// StoreHandler serves the item store and the avatar inventory.
type StoreHandler struct {
	items *service.StoreService
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(items *service.StoreService) *StoreHandler {
	return &StoreHandler{items: items}
}

type equipRequest struct {
	Equipped *bool `json:"equipped" binding:"required"`
}

func storeFilter(c *gin.Context) (shop.Filter, error) {
	f := shop.Filter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	var err error
	if f.MinPrice, err = int64Query(c, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = int64Query(c, "maxPrice"); err != nil {
		return f, err
	}
	if f.PremiumOnly, err = boolQuery(c, "premiumOnly"); err != nil {
		return f, err
	}
	return f, nil
}

// ListItems handles GET /store/items.
func (h *StoreHandler) ListItems(c *gin.Context) {
	f, err := storeFilter(c)
	if err != nil {
		Error(c, err)
		return
	}
	items, err := h.items.ListItems(c, userID(c), f)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Purchase handles POST /store/items/:id/purchase.
func (h *StoreHandler) Purchase(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrItemNotFound)
	if !ok {
		return
	}
	res, err := h.items.Purchase(c, userID(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Inventory handles GET /avatar/items.
func (h *StoreHandler) Inventory(c *gin.Context) {
	items, err := h.items.Inventory(c, userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Equip handles POST /avatar/items/:id/equip.
func (h *StoreHandler) Equip(c *gin.Context) {
	id, ok := uuidParam(c, "id", service.ErrItemNotOwned)
	if !ok {
		return
	}
	var req equipRequest
	if !bind(c, &req) {
		return
	}

	ac, err := h.items.Equip(c, userID(c), id, *req.Equipped)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ac)
}
