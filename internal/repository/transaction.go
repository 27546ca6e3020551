package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"calixo/internal/model"
)

const transactionColumns = `id, user_id, amount, type, item_id, challenge_id, coupon_id, description, created_at`

// TransactionRepository handles the append-only coin ledger.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// LedgerRef links a ledger entry to the entity that caused it.
type LedgerRef struct {
	ItemID      *uuid.UUID
	ChallengeID *uuid.UUID
	CouponID    *uuid.UUID
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Type,
		&tx.ItemID,
		&tx.ChallengeID,
		&tx.CouponID,
		&tx.Description,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Create appends a ledger entry. amount is signed: positive for earn,
// negative for spend.
func (r *TransactionRepository) Create(ctx context.Context, userID string, amount int64, txType string, ref LedgerRef, description *string) (*model.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, amount, type, item_id, challenge_id, coupon_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRow(ctx, query,
		userID, amount, txType, ref.ItemID, ref.ChallengeID, ref.CouponID, description))
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("ledger entry %s %d violates sign rule: %w", txType, amount, err)
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// GetByUserID retrieves a user's ledger entries, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// SumByUserID returns the running sum of a user's ledger, which must equal
// the profile's coin balance.
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}
