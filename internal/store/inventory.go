package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/prodaja/internal/model"
)

// ReserveStock takes one unit of a phone out of stock in a single atomic
// statement and returns the remaining quantity. It fails with
// model.ErrOutOfStock when no unit is left and model.ErrNotFound when the
// phone does not exist. Concurrent callers can never drive stock below zero.
func ReserveStock(ctx context.Context, db *sql.DB, id int64) (int, error) {
	var remaining int
	err := db.QueryRowContext(ctx,
		`UPDATE phones SET stock_quantity = stock_quantity - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stock_quantity > 0
		 RETURNING stock_quantity`, id,
	).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, missingOrEmpty(ctx, db, id)
	}
	if err != nil {
		return 0, fmt.Errorf("reserving stock: %w", err)
	}
	return remaining, nil
}

// ReleaseStock returns a previously reserved unit to stock.
func ReleaseStock(ctx context.Context, db *sql.DB, id int64) (int, error) {
	return IncrementStock(ctx, db, id, 1)
}

// IncrementStock adds units to a phone's stock and returns the new quantity.
func IncrementStock(ctx context.Context, db *sql.DB, id int64, by int) (int, error) {
	if by <= 0 {
		return 0, fmt.Errorf("%w: increment must be positive", model.ErrValidation)
	}

	var qty int
	err := db.QueryRowContext(ctx,
		`UPDATE phones SET stock_quantity = stock_quantity + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING stock_quantity`, by, id,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, model.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing stock: %w", err)
	}
	return qty, nil
}

// DecrementStock removes units from a phone's stock and returns the new
// quantity. The result is floored at zero.
func DecrementStock(ctx context.Context, db *sql.DB, id int64, by int) (int, error) {
	if by <= 0 {
		return 0, fmt.Errorf("%w: decrement must be positive", model.ErrValidation)
	}

	var qty int
	err := db.QueryRowContext(ctx,
		`UPDATE phones SET stock_quantity = MAX(stock_quantity - ?, 0), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING stock_quantity`, by, id,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, model.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("decrementing stock: %w", err)
	}
	return qty, nil
}

// AdjustStock applies a signed correction to a phone's stock.
func AdjustStock(ctx context.Context, db *sql.DB, id int64, delta int) (int, error) {
	switch {
	case delta > 0:
		return IncrementStock(ctx, db, id, delta)
	case delta < 0:
		return DecrementStock(ctx, db, id, -delta)
	default:
		return 0, fmt.Errorf("%w: delta must be non-zero", model.ErrValidation)
	}
}

func missingOrEmpty(ctx context.Context, db *sql.DB, id int64) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM phones WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking phone: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrOutOfStock
}

// Inventory binds the phone store to a database handle for the import and
// listing engines.
type Inventory struct {
	DB *sql.DB
}

// GetPhone returns a phone by ID, or nil if it does not exist.
func (s Inventory) GetPhone(ctx context.Context, id int64) (*model.Phone, error) {
	return GetPhone(ctx, s.DB, id)
}

// ListPhones returns every phone.
func (s Inventory) ListPhones(ctx context.Context) ([]model.Phone, error) {
	return ListPhones(ctx, s.DB, PhoneFilter{})
}

// UpsertPhone creates or updates a phone by identity key.
func (s Inventory) UpsertPhone(ctx context.Context, p model.Phone) (*model.Phone, bool, error) {
	return UpsertPhone(ctx, s.DB, p)
}

// ReserveStock atomically takes one unit out of stock.
func (s Inventory) ReserveStock(ctx context.Context, id int64) (int, error) {
	return ReserveStock(ctx, s.DB, id)
}

// ReleaseStock returns a reserved unit to stock.
func (s Inventory) ReleaseStock(ctx context.Context, id int64) (int, error) {
	return ReleaseStock(ctx, s.DB, id)
}
