package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant is the sellable unit carrying the stock ledger.
// StockQty never drops below zero; decrements happen through conditional
// updates that enforce the floor at the database.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string    `gorm:"column:sku;not null"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents *int64    `gorm:"column:price_cents"`
	StockQty   int       `gorm:"column:stock_qty;not null"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents resolves the variant price, falling back to the parent
// product price when no override is set.
func (v ProductVariant) EffectivePriceCents(productPriceCents int64) int64 {
	if v.PriceCents != nil {
		return *v.PriceCents
	}
	return productPriceCents
}
