package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
	"github.com/hvalleo/storefront-backend/pkg/outbox/idempotency"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order transitions into shopper
// notifications. Delivery is best effort: a failed insert nacks the message
// and Pub/Sub redelivers it.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	handler, ok := c.handlerFor(enums.OutboxEventType(eventType))
	if !ok {
		c.logg.Info(logCtx, "skipping non-order event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

type eventHandler func(ctx context.Context, data json.RawMessage, logCtx context.Context) error

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) (eventHandler, bool) {
	switch eventType {
	case enums.EventOrderCreated:
		return c.handleOrderCreated, true
	case enums.EventOrderStatusChanged:
		return c.handleStatusChanged, true
	case enums.EventPaymentStatusChanged:
		return c.handlePaymentChanged, true
	default:
		return nil, false
	}
}

func (c *Consumer) handleOrderCreated(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse order_created payload: %w", err)
	}
	if payload.ShopperID == uuid.Nil {
		return fmt.Errorf("shopper id missing")
	}

	notification := &models.Notification{
		ShopperID: payload.ShopperID,
		Type:      enums.NotificationTypeOrderConfirmation,
		Subject:   "Order confirmed",
		Body:      fmt.Sprintf("Thanks for your purchase. Order %s has been received and is being prepared.", payload.OrderNumber),
		Data: types.JSONMap{
			"order_id":     payload.OrderID.String(),
			"order_number": payload.OrderNumber,
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "shopper notified of new order")
	return nil
}

func (c *Consumer) handleStatusChanged(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload orderStatusChangedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse order_status_changed payload: %w", err)
	}
	if payload.ShopperID == uuid.Nil {
		return fmt.Errorf("shopper id missing")
	}

	kind := payload.Notification
	if !kind.IsValid() {
		kind = enums.NotificationTypeOrderStatusUpdate
	}

	subject, body := statusCopy(kind, payload)
	notification := &models.Notification{
		ShopperID: payload.ShopperID,
		Type:      kind,
		Subject:   subject,
		Body:      body,
		Data: types.JSONMap{
			"order_id":     payload.OrderID.String(),
			"order_number": payload.OrderNumber,
			"status":       string(payload.NewStatus),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "shopper notified of status change")
	return nil
}

func (c *Consumer) handlePaymentChanged(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload paymentStatusChangedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payment_status_changed payload: %w", err)
	}
	if payload.ShopperID == uuid.Nil {
		return fmt.Errorf("shopper id missing")
	}

	notification := &models.Notification{
		ShopperID: payload.ShopperID,
		Type:      enums.NotificationTypeSystem,
		Subject:   "Payment update",
		Body:      fmt.Sprintf("Payment for order %s is now %s.", payload.OrderNumber, payload.NewStatus),
		Data: types.JSONMap{
			"order_id":       payload.OrderID.String(),
			"order_number":   payload.OrderNumber,
			"payment_status": string(payload.NewStatus),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "shopper notified of payment change")
	return nil
}

func statusCopy(kind enums.NotificationType, payload orderStatusChangedPayload) (string, string) {
	switch kind {
	case enums.NotificationTypeOrderShipped:
		return "Your order has shipped",
			fmt.Sprintf("Order %s is on its way.", payload.OrderNumber)
	case enums.NotificationTypeOrderDelivered:
		return "Your order was delivered",
			fmt.Sprintf("Order %s has been delivered. Enjoy!", payload.OrderNumber)
	default:
		return "Order update",
			fmt.Sprintf("Order %s is now %s.", payload.OrderNumber, payload.NewStatus)
	}
}

type orderCreatedPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ShopperID   uuid.UUID `json:"shopper_id"`
	TotalCents  int64     `json:"total_cents"`
}

type orderStatusChangedPayload struct {
	OrderID      uuid.UUID              `json:"order_id"`
	OrderNumber  string                 `json:"order_number"`
	ShopperID    uuid.UUID              `json:"shopper_id"`
	NewStatus    enums.OrderStatus      `json:"new_status"`
	Notification enums.NotificationType `json:"notification"`
}

type paymentStatusChangedPayload struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	ShopperID   uuid.UUID           `json:"shopper_id"`
	NewStatus   enums.PaymentStatus `json:"new_status"`
}
