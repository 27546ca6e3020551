package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

const storeItemColumns = `id, item_key, name, description, category, price, premium_only, image_url, is_active, created_at, updated_at`

// StoreItemRepository handles store catalog persistence.
type StoreItemRepository struct {
	db DBTX
}

// NewStoreItemRepository creates a new StoreItemRepository instance.
func NewStoreItemRepository(db DBTX) *StoreItemRepository {
	return &StoreItemRepository{db: db}
}

func scanStoreItem(row rowScanner) (*model.StoreItem, error) {
	var it model.StoreItem
	err := row.Scan(
		&it.ID,
		&it.Key,
		&it.Name,
		&it.Description,
		&it.Category,
		&it.Price,
		&it.PremiumOnly,
		&it.ImageURL,
		&it.IsActive,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *StoreItemRepository) getOne(ctx context.Context, query string, args ...any) (*model.StoreItem, error) {
	it, err := scanStoreItem(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreItemNotFound
		}
		if isUniqueViolation(err, "store_items_item_key_key") {
			return nil, ErrItemKeyTaken
		}
		return nil, fmt.Errorf("failed to get store item: %w", err)
	}
	return it, nil
}

// Create inserts a store item.
func (r *StoreItemRepository) Create(ctx context.Context, it *model.StoreItem) (*model.StoreItem, error) {
	query := `
		INSERT INTO store_items (id, item_key, name, description, category, price, premium_only, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + storeItemColumns

	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return r.getOne(ctx, query,
		it.ID, it.Key, it.Name, it.Description, it.Category, it.Price, it.PremiumOnly, it.ImageURL, it.IsActive)
}

// Update overwrites the editable fields of an item.
func (r *StoreItemRepository) Update(ctx context.Context, it *model.StoreItem) (*model.StoreItem, error) {
	query := `
		UPDATE store_items
		SET item_key = $2, name = $3, description = $4, category = $5, price = $6,
		    premium_only = $7, image_url = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + storeItemColumns
	return r.getOne(ctx, query,
		it.ID, it.Key, it.Name, it.Description, it.Category, it.Price, it.PremiumOnly, it.ImageURL, it.IsActive)
}

// SetActive soft-activates or deactivates an item.
func (r *StoreItemRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.StoreItem, error) {
	query := `
		UPDATE store_items SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + storeItemColumns
	return r.getOne(ctx, query, id, active)
}

// GetByID retrieves an item regardless of its active flag.
func (r *StoreItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.StoreItem, error) {
	return r.getOne(ctx, `SELECT `+storeItemColumns+` FROM store_items WHERE id = $1`, id)
}

// ListActive returns every active item. Filtering and ordering for display
// happen in the shop package.
func (r *StoreItemRepository) ListActive(ctx context.Context) ([]*model.StoreItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+storeItemColumns+` FROM store_items WHERE is_active ORDER BY price, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list store items: %w", err)
	}
	defer rows.Close()

	var out []*model.StoreItem
	for rows.Next() {
		it, err := scanStoreItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating store items: %w", err)
	}
	return out, nil
}
