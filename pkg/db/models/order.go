package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/pkg/enums"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// Order is the immutable record assembled at checkout.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:idx_orders_number"`
	ShopperID       uuid.UUID           `gorm:"column:shopper_id;type:uuid;not null;index"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Currency        string              `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents   int64               `gorm:"column:subtotal_cents;not null"`
	TaxCents        int64               `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents   int64               `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents   int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  types.Address       `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Notes           *string             `gorm:"column:notes"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	IsDelivered     bool                `gorm:"column:is_delivered;not null;default:false"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
