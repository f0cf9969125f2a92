package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the single open cart per shopper. Version backs optimistic
// concurrency control on mutations.
type Cart struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID     uuid.UUID  `gorm:"column:shopper_id;type:uuid;not null;uniqueIndex:idx_carts_shopper"`
	Version       int64      `gorm:"column:version;not null"`
	SubtotalCents int64      `gorm:"column:subtotal_cents;not null"`
	ItemCount     int        `gorm:"column:item_count;not null"`
	Items         []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
