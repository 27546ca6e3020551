// Package shop holds the store rules shared by listing and purchase:
// item categories, the ordered purchase preconditions and the listing
// filter and sort.
package shop

import (
	"slices"

	"github.com/gosimple/slug"

	"calixo/internal/apperr"
	"calixo/internal/model"
)

// Avatar item categories. At most one item per category can be equipped.
const (
	CategoryHat        = "hat"
	CategoryTop        = "top"
	CategoryBottom     = "bottom"
	CategoryShoes      = "shoes"
	CategoryAccessory  = "accessory"
	CategoryBackground = "background"
	CategoryColor      = "color"
)

// Categories returns every item category in display order.
func Categories() []string {
	return []string{
		CategoryHat,
		CategoryTop,
		CategoryBottom,
		CategoryShoes,
		CategoryAccessory,
		CategoryBackground,
		CategoryColor,
	}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	return slices.Contains(Categories(), c)
}

// ItemKey derives the stable item key from a display name.
func ItemKey(name string) string {
	return slug.Make(name)
}

// Purchase failures, in the order they are checked.
var (
	ErrInsufficientCoins = apperr.New(apperr.KindInsufficientResource, "not enough coins")
	ErrPremiumRequired   = apperr.New(apperr.KindEntitlementRequired, "this item requires premium")
	ErrAlreadyOwned      = apperr.New(apperr.KindStateConflict, "item already owned")
)

// CheckPurchase applies the purchase preconditions that follow item and
// profile lookup: balance, then premium gate, then ownership. The first
// failing check wins.
func CheckPurchase(item *model.StoreItem, p *model.Profile, owned bool) error {
	if p.Coins < item.Price {
		return ErrInsufficientCoins
	}
	if item.PremiumOnly && !p.IsPremium {
		return ErrPremiumRequired
	}
	if owned {
		return ErrAlreadyOwned
	}
	return nil
}
