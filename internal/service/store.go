package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
	"calixo/internal/shop"
)

// StoreService handles the item store and the avatar inventory.
type StoreService struct {
	store    *repository.Store
	userLock *lock.UserLock
	blobs    BlobStore
}

// NewStoreService creates a new StoreService instance. blobs may be nil.
func NewStoreService(store *repository.Store, userLock *lock.UserLock, blobs BlobStore) *StoreService {
	return &StoreService{
		store:    store,
		userLock: userLock,
		blobs:    blobs,
	}
}

// ListItems returns active items matching f, annotated for the caller.
func (s *StoreService) ListItems(ctx context.Context, userID string, f shop.Filter) ([]shop.Listing, error) {
	if f.Category != "" && !shop.ValidCategory(f.Category) {
		return nil, apperr.Validation("unknown item category")
	}
	p, err := s.store.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	items, err := s.store.StoreItems.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.Avatar.OwnedItemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return shop.BuildListing(items, f, p, owned), nil
}

// PurchaseResult reports the outcome of a purchase.
type PurchaseResult struct {
	Item  *model.StoreItem           `json:"item"`
	Owned *model.AvatarCustomization `json:"owned"`
	Coins int64                      `json:"coins"`
}

// Purchase buys an item with coins. The debit, the spend ledger entry and the
// ownership row are written in one transaction.
func (s *StoreService) Purchase(ctx context.Context, userID string, itemID uuid.UUID) (*PurchaseResult, error) {
	var result PurchaseResult

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		item, err := r.StoreItems.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return ErrItemNotFound
		}

		p, err := r.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		owned, err := r.Avatar.Owns(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if err := shop.CheckPurchase(item, p, owned); err != nil {
			return err
		}

		coins := p.Coins
		if item.Price > 0 {
			if coins, err = r.Profiles.Debit(ctx, userID, item.Price); err != nil {
				return err
			}
			desc := "Purchased " + item.Name
			ref := repository.LedgerRef{ItemID: &item.ID}
			if _, err := r.Transactions.Create(ctx, userID, -item.Price, model.TxTypeSpend, ref, &desc); err != nil {
				return err
			}
		}

		ac, err := r.Avatar.Unlock(ctx, userID, item.ID, item.Category)
		if err != nil {
			return err
		}

		result = PurchaseResult{Item: item, Owned: ac, Coins: coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("item", result.Item.Key).
		Int64("price", result.Item.Price).
		Int64("balance", result.Coins).
		Msg("Item purchased")
	return &result, nil
}

// Inventory returns the caller's owned items.
func (s *StoreService) Inventory(ctx context.Context, userID string) ([]*repository.OwnedItem, error) {
	return s.store.Avatar.List(ctx, userID)
}

// Equip sets the equipped flag of an owned item. Equipping unequips the other
// items of the same category.
func (s *StoreService) Equip(ctx context.Context, userID string, itemID uuid.UUID, equipped bool) (*model.AvatarCustomization, error) {
	var ac *model.AvatarCustomization

	err := userTx(ctx, s.userLock, s.store, userID, func(r *repository.Repositories) error {
		if _, err := r.Profiles.GetForUpdate(ctx, userID); err != nil {
			return err
		}
		var err error
		ac, err = r.Avatar.GetForUpdate(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if equipped {
			if err := r.Avatar.UnequipCategory(ctx, userID, ac.Category, itemID); err != nil {
				return err
			}
		}
		if err := r.Avatar.SetEquipped(ctx, userID, itemID, equipped); err != nil {
			return err
		}
		if equipped {
			n, err := r.Avatar.EquippedCount(ctx, userID, ac.Category)
			if err != nil {
				return err
			}
			if n != 1 {
				return fmt.Errorf("equip left %d items equipped in category %s", n, ac.Category)
			}
		}
		ac.Equipped = equipped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ac, nil
}

// ItemInput holds the editable fields of a store item.
type ItemInput struct {
	Name        string  `json:"name" binding:"required,max=120"`
	Description string  `json:"description"`
	Category    string  `json:"category" binding:"required,itemcategory"`
	Price       int64   `json:"price" binding:"gte=0"`
	PremiumOnly bool    `json:"premiumOnly"`
	ImageURL    *string `json:"imageUrl" binding:"omitempty,url"`
	IsActive    *bool   `json:"isActive"`
}

func (in ItemInput) item(id uuid.UUID) (*model.StoreItem, error) {
	name := strings.TrimSpace(in.Name)
	key := shop.ItemKey(name)
	switch {
	case key == "":
		return nil, apperr.Validation("item name is required")
	case !shop.ValidCategory(in.Category):
		return nil, apperr.Validation("unknown item category")
	case in.Price < 0:
		return nil, apperr.Validation("price must not be negative")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &model.StoreItem{
		ID:          id,
		Key:         key,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Price:       in.Price,
		PremiumOnly: in.PremiumOnly,
		ImageURL:    in.ImageURL,
		IsActive:    active,
	}, nil
}

// CreateItem adds an item to the store.
func (s *StoreService) CreateItem(ctx context.Context, in ItemInput) (*model.StoreItem, error) {
	it, err := in.item(uuid.New())
	if err != nil {
		return nil, err
	}
	created, err := s.store.StoreItems.Create(ctx, it)
	if err != nil {
		return nil, translate(err)
	}
	log.Info().Str("item_id", created.ID.String()).Str("key", created.Key).Msg("Store item created")
	return created, nil
}

// UpdateItem overwrites a store item. When the category changes, owned copies
// follow it and are unequipped.
func (s *StoreService) UpdateItem(ctx context.Context, id uuid.UUID, in ItemInput) (*model.StoreItem, error) {
	it, err := in.item(id)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.StoreItem
		moved   int64
	)
	err = s.store.InTx(ctx, func(r *repository.Repositories) error {
		var err error
		if updated, err = r.StoreItems.Update(ctx, it); err != nil {
			return err
		}
		moved, err = r.Avatar.Recategorize(ctx, id, updated.Category)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	if moved > 0 {
		log.Info().
			Str("item_id", id.String()).
			Str("category", updated.Category).
			Int64("owned_copies", moved).
			Msg("Store item recategorized, owned copies unequipped")
	}
	return updated, nil
}

// SetItemImage uploads an image for a store item.
func (s *StoreService) SetItemImage(ctx context.Context, adminID string, id uuid.UUID, u *Upload) (*model.StoreItem, error) {
	it, err := s.store.StoreItems.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	url, err := storeImage(ctx, s.blobs, "items", adminID, u)
	if err != nil {
		return nil, err
	}
	it.ImageURL = &url
	updated, err := s.store.StoreItems.Update(ctx, it)
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// DeactivateItem removes an item from sale. Owners keep it.
func (s *StoreService) DeactivateItem(ctx context.Context, id uuid.UUID) (*model.StoreItem, error) {
	it, err := s.store.StoreItems.SetActive(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrStoreItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	log.Info().Str("item_id", id.String()).Msg("Store item deactivated")
	return it, nil
}
