package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one merged line in a cart. A product/variant pair appears at
// most once per cart; repeat adds accumulate quantity on the existing line.
type CartItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID  `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_line"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_line"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:idx_cart_items_line"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64      `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
