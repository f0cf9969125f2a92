package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a shopper's rating for a product. One review per shopper per
// product, enforced by the composite unique index.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_reviews_product_shopper"`
	ShopperID uuid.UUID `gorm:"column:shopper_id;type:uuid;not null;uniqueIndex:idx_reviews_product_shopper"`
	Rating    int       `gorm:"column:rating;not null"`
	Title     *string   `gorm:"column:title"`
	Body      *string   `gorm:"column:body"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
