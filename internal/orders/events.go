package orders

import (
	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is the payload emitted when an order is assembled.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ShopperID   uuid.UUID `json:"shopper_id"`
	TotalCents  int64     `json:"total_cents"`
}

// OrderStatusChangedEvent is emitted once per effective status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID              `json:"order_id"`
	OrderNumber    string                 `json:"order_number"`
	ShopperID      uuid.UUID              `json:"shopper_id"`
	PreviousStatus enums.OrderStatus      `json:"previous_status"`
	NewStatus      enums.OrderStatus      `json:"new_status"`
	Notification   enums.NotificationType `json:"notification"`
}

// PaymentStatusChangedEvent is emitted once per effective payment transition.
type PaymentStatusChangedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	ShopperID      uuid.UUID           `json:"shopper_id"`
	PreviousStatus enums.PaymentStatus `json:"previous_status"`
	NewStatus      enums.PaymentStatus `json:"new_status"`
}
