package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
)

// LifecycleService drives order and payment status transitions. Any status
// may follow any other; the transition's value is in the derived effects
// (timestamps, one notification per effective change), not in gatekeeping.
type LifecycleService interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*models.Order, error)
}

type lifecycle struct {
	repo   OrderRepository
	tx     txRunner
	events eventEmitter
	now    func() time.Time
}

// NewLifecycleService builds the order state machine.
func NewLifecycleService(repo OrderRepository, tx txRunner, events eventEmitter) (LifecycleService, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &lifecycle{
		repo:   repo,
		tx:     tx,
		events: events,
		now:    time.Now,
	}, nil
}

// SetStatus applies the new order status. Setting the current status again is
// a no-op: nothing is stamped and no notification fires.
func (l *lifecycle) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	var result *models.Order
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		record, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		prior := record.Status
		if prior == status {
			result = record
			return nil
		}

		fields := map[string]any{"status": status}
		now := l.now()
		if status == enums.OrderStatusShipped {
			fields["shipped_at"] = now
		}
		if status == enums.OrderStatusDelivered {
			fields["delivered_at"] = now
			fields["is_delivered"] = true
		}
		if err := repo.UpdateFields(ctx, record.ID, fields); err != nil {
			return err
		}

		if err := l.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   record.ID,
			Shopper:       &outbox.ShopperRef{ShopperID: record.ShopperID},
			Data: OrderStatusChangedEvent{
				OrderID:        record.ID,
				OrderNumber:    record.OrderNumber,
				ShopperID:      record.ShopperID,
				PreviousStatus: prior,
				NewStatus:      status,
				Notification:   notificationForStatus(status),
			},
		}); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, record.ID)
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return result, nil
}

// SetPaymentStatus applies the new payment status, no-op on repeats.
func (l *lifecycle) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", status)
	}

	var result *models.Order
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		record, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		prior := record.PaymentStatus
		if prior == status {
			result = record
			return nil
		}

		if err := repo.UpdateFields(ctx, record.ID, map[string]any{"payment_status": status}); err != nil {
			return err
		}

		if err := l.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   record.ID,
			Shopper:       &outbox.ShopperRef{ShopperID: record.ShopperID},
			Data: PaymentStatusChangedEvent{
				OrderID:        record.ID,
				OrderNumber:    record.OrderNumber,
				ShopperID:      record.ShopperID,
				PreviousStatus: prior,
				NewStatus:      status,
			},
		}); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, record.ID)
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	return result, nil
}

// notificationForStatus picks the template announced for a transition into
// the given status.
func notificationForStatus(status enums.OrderStatus) enums.NotificationType {
	switch status {
	case enums.OrderStatusShipped:
		return enums.NotificationTypeOrderShipped
	case enums.OrderStatusDelivered:
		return enums.NotificationTypeOrderDelivered
	default:
		return enums.NotificationTypeOrderStatusUpdate
	}
}
