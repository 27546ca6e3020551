package shop

import (
	"cmp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"calixo/internal/apperr"
	"calixo/internal/model"
)

// Filter narrows the store listing. Zero values match everything.
type Filter struct {
	Category    string
	MinPrice    *int64
	MaxPrice    *int64
	PremiumOnly *bool
	Search      string
}

// Match reports whether it passes the filter.
func (f Filter) Match(it *model.StoreItem) bool {
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && it.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && it.Price > *f.MaxPrice {
		return false
	}
	if f.PremiumOnly != nil && it.PremiumOnly != *f.PremiumOnly {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(it.Name), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) {
			return false
		}
	}
	return true
}

// Listing is a store item annotated for one user.
type Listing struct {
	*model.StoreItem
	Owned       bool   `json:"owned"`
	CanPurchase bool   `json:"canPurchase"`
	Reason      string `json:"reason,omitempty"`
}

// BuildListing filters items, annotates them for the profile and sorts them
// unowned first, then by price, then by name.
func BuildListing(items []*model.StoreItem, f Filter, p *model.Profile, owned map[uuid.UUID]bool) []Listing {
	out := make([]Listing, 0, len(items))
	for _, it := range items {
		if !it.IsActive || !f.Match(it) {
			continue
		}
		l := Listing{StoreItem: it, Owned: owned[it.ID]}
		if err := CheckPurchase(it, p, l.Owned); err != nil {
			l.Reason = apperr.MessageOf(err)
		} else {
			l.CanPurchase = true
		}
		out = append(out, l)
	}
	SortListing(out)
	return out
}

// SortListing orders listings unowned first, then by price, then by name.
func SortListing(ls []Listing) {
	slices.SortStableFunc(ls, func(a, b Listing) int {
		if a.Owned != b.Owned {
			if !a.Owned {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Price, b.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
