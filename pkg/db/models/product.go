package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product represents a storefront catalog listing.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Slug          string           `gorm:"column:slug;not null"`
	Title         string           `gorm:"column:title;not null"`
	Description   *string          `gorm:"column:description"`
	Category      string           `gorm:"column:category;not null"`
	Tags          pq.StringArray   `gorm:"column:tags;type:text[]"`
	PriceCents    int64            `gorm:"column:price_cents;not null"`
	Currency      string           `gorm:"column:currency;type:text;not null;default:'USD'"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	RatingAverage float64          `gorm:"column:rating_average;type:numeric(3,2);not null;default:0"`
	RatingCount   int              `gorm:"column:rating_count;not null;default:0"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
