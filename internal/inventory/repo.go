package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
)

// Repository exposes persistence operations for the stock ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) StockRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindVariant loads a variant by id.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var row models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ApplyDelta adjusts stock atomically. The WHERE clause enforces the
// non-negative floor, so a decrement past zero affects no rows instead of
// writing a negative quantity.
func (r *Repository) ApplyDelta(ctx context.Context, variantID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock_qty = stock_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_qty + ? >= 0
	`, delta, variantID, delta)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
