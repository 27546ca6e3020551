package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

// AvatarRepository handles item ownership and equip state.
type AvatarRepository struct {
	db DBTX
}

// NewAvatarRepository creates a new AvatarRepository instance.
func NewAvatarRepository(db DBTX) *AvatarRepository {
	return &AvatarRepository{db: db}
}

// OwnedItem is an owned customization joined with its store item.
type OwnedItem struct {
	model.AvatarCustomization
	Item model.StoreItem `json:"item"`
}

// Unlock records ownership of an item, unequipped.
// Returns ErrAlreadyOwned if the user already has it.
func (r *AvatarRepository) Unlock(ctx context.Context, userID string, itemID uuid.UUID, category string) (*model.AvatarCustomization, error) {
	const query = `
		INSERT INTO avatar_customizations (user_id, item_id, category, equipped, unlocked_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		RETURNING user_id, item_id, category, equipped, unlocked_at
	`

	var ac model.AvatarCustomization
	err := r.db.QueryRow(ctx, query, userID, itemID, category).Scan(
		&ac.UserID,
		&ac.ItemID,
		&ac.Category,
		&ac.Equipped,
		&ac.UnlockedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "avatar_customizations_pkey") {
			return nil, ErrAlreadyOwned
		}
		return nil, fmt.Errorf("failed to unlock item: %w", err)
	}
	return &ac, nil
}

// Owns reports whether the user owns the item.
func (r *AvatarRepository) Owns(ctx context.Context, userID string, itemID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM avatar_customizations WHERE user_id = $1 AND item_id = $2)`

	var owned bool
	if err := r.db.QueryRow(ctx, query, userID, itemID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owned, nil
}

// OwnedItemIDs returns the set of item IDs the user owns.
func (r *AvatarRepository) OwnedItemIDs(ctx context.Context, userID string) (map[uuid.UUID]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT item_id FROM avatar_customizations WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owned items: %w", err)
	}
	defer rows.Close()

	owned := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owned item: %w", err)
		}
		owned[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owned items: %w", err)
	}
	return owned, nil
}

// List returns every item the user owns, grouped by category.
func (r *AvatarRepository) List(ctx context.Context, userID string) ([]*OwnedItem, error) {
	query := `
		SELECT ac.user_id, ac.item_id, ac.category, ac.equipped, ac.unlocked_at,
		       ` + prefixed("s", storeItemColumns) + `
		FROM avatar_customizations ac
		JOIN store_items s ON s.id = ac.item_id
		WHERE ac.user_id = $1
		ORDER BY ac.category, ac.unlocked_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list avatar items: %w", err)
	}
	defer rows.Close()

	var out []*OwnedItem
	for rows.Next() {
		var o OwnedItem
		err := rows.Scan(
			&o.UserID,
			&o.ItemID,
			&o.Category,
			&o.Equipped,
			&o.UnlockedAt,
			&o.Item.ID,
			&o.Item.Key,
			&o.Item.Name,
			&o.Item.Description,
			&o.Item.Category,
			&o.Item.Price,
			&o.Item.PremiumOnly,
			&o.Item.ImageURL,
			&o.Item.IsActive,
			&o.Item.CreatedAt,
			&o.Item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan avatar item: %w", err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating avatar items: %w", err)
	}
	return out, nil
}

// GetForUpdate locks and returns one owned customization.
// Returns ErrItemNotOwned if the user does not own the item.
func (r *AvatarRepository) GetForUpdate(ctx context.Context, userID string, itemID uuid.UUID) (*model.AvatarCustomization, error) {
	const query = `
		SELECT user_id, item_id, category, equipped, unlocked_at
		FROM avatar_customizations
		WHERE user_id = $1 AND item_id = $2
		FOR UPDATE
	`

	var ac model.AvatarCustomization
	err := r.db.QueryRow(ctx, query, userID, itemID).Scan(
		&ac.UserID,
		&ac.ItemID,
		&ac.Category,
		&ac.Equipped,
		&ac.UnlockedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotOwned
		}
		return nil, fmt.Errorf("failed to get avatar item: %w", err)
	}
	return &ac, nil
}

// UnequipCategory unequips every item of category except keep.
func (r *AvatarRepository) UnequipCategory(ctx context.Context, userID, category string, keep uuid.UUID) error {
	const query = `
		UPDATE avatar_customizations
		SET equipped = FALSE
		WHERE user_id = $1 AND category = $2 AND item_id <> $3 AND equipped
	`
	if _, err := r.db.Exec(ctx, query, userID, category, keep); err != nil {
		return fmt.Errorf("failed to unequip category: %w", err)
	}
	return nil
}

// SetEquipped sets the equip flag of one owned item.
func (r *AvatarRepository) SetEquipped(ctx context.Context, userID string, itemID uuid.UUID, equipped bool) error {
	const query = `
		UPDATE avatar_customizations SET equipped = $3
		WHERE user_id = $1 AND item_id = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, itemID, equipped)
	if err != nil {
		return fmt.Errorf("failed to set equipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotOwned
	}
	return nil
}

// Recategorize moves every owned copy of an item to category. Moved copies are
// unequipped so no owner ends up with two equipped items in one category.
// Returns the number of copies moved.
func (r *AvatarRepository) Recategorize(ctx context.Context, itemID uuid.UUID, category string) (int64, error) {
	const query = `
		UPDATE avatar_customizations
		SET category = $2, equipped = FALSE
		WHERE item_id = $1 AND category <> $2
	`
	tag, err := r.db.Exec(ctx, query, itemID, category)
	if err != nil {
		return 0, fmt.Errorf("failed to recategorize owned items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EquippedCount returns how many items of category the user has equipped.
func (r *AvatarRepository) EquippedCount(ctx context.Context, userID, category string) (int, error) {
	const query = `SELECT COUNT(*) FROM avatar_customizations WHERE user_id = $1 AND category = $2 AND equipped`

	var n int
	if err := r.db.QueryRow(ctx, query, userID, category).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count equipped items: %w", err)
	}
	return n, nil
}
