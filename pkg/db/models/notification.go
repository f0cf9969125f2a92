package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/pkg/enums"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// Notification is a shopper-facing message produced by order events.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID uuid.UUID              `gorm:"column:shopper_id;type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Subject   string                 `gorm:"column:subject;not null"`
	Body      string                 `gorm:"column:body;not null"`
	Data      types.JSONMap          `gorm:"column:data;type:jsonb"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
