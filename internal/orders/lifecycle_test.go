package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
)

func TestSetStatusShippedStampsAndNotifiesOnce(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	lifecycle := newLifecycle(t, env)
	order := createPendingOrder(t, env)
	ctx := context.Background()

	updated, err := lifecycle.SetStatus(ctx, order.ID, enums.OrderStatusShipped)
	if err != nil {
		t.Fatalf("set shipped: %v", err)
	}
	if updated.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", updated.Status)
	}
	if updated.ShippedAt == nil {
		t.Fatal("expected shipped_at stamp")
	}
	firstStamp := *updated.ShippedAt

	if got := countStatusEvents(t, env); got != 1 {
		t.Fatalf("expected one status event, got %d", got)
	}

	// Repeating the same status is a no-op: no re-stamp, no new event.
	again, err := lifecycle.SetStatus(ctx, order.ID, enums.OrderStatusShipped)
	if err != nil {
		t.Fatalf("repeat shipped: %v", err)
	}
	if again.ShippedAt == nil || !again.ShippedAt.Equal(firstStamp) {
		t.Fatalf("expected shipped_at unchanged, got %v", again.ShippedAt)
	}
	if got := countStatusEvents(t, env); got != 1 {
		t.Fatalf("expected still one status event, got %d", got)
	}
}

func TestSetStatusDelivered(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	lifecycle := newLifecycle(t, env)
	order := createPendingOrder(t, env)

	updated, err := lifecycle.SetStatus(context.Background(), order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("set delivered: %v", err)
	}
	if updated.DeliveredAt == nil || !updated.IsDelivered {
		t.Fatalf("expected delivery stamps, got %+v", updated)
	}
}

func TestSetStatusIsPermissive(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	lifecycle := newLifecycle(t, env)
	order := createPendingOrder(t, env)
	ctx := context.Background()

	if _, err := lifecycle.SetStatus(ctx, order.ID, enums.OrderStatusDelivered); err != nil {
		t.Fatalf("pending to delivered: %v", err)
	}
	// Any status may follow any other.
	updated, err := lifecycle.SetStatus(ctx, order.ID, enums.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("delivered to processing: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
}

func TestSetStatusErrors(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	lifecycle := newLifecycle(t, env)
	ctx := context.Background()

	_, err := lifecycle.SetStatus(ctx, uuid.New(), enums.OrderStatusShipped)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	order := createPendingOrder(t, env)
	_, err = lifecycle.SetStatus(ctx, order.ID, enums.OrderStatus("teleported"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetPaymentStatus(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	lifecycle := newLifecycle(t, env)
	order := createPendingOrder(t, env)
	ctx := context.Background()

	updated, err := lifecycle.SetPaymentStatus(ctx, order.ID, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("set payment status: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.PaymentStatus)
	}

	var eventCount int64
	if err := env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentStatusChanged).
		Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("expected one payment event, got %d", eventCount)
	}

	// Repeat is a no-op.
	if _, err := lifecycle.SetPaymentStatus(ctx, order.ID, enums.PaymentStatusCompleted); err != nil {
		t.Fatalf("repeat payment status: %v", err)
	}
	if err := env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentStatusChanged).
		Count(&eventCount).Error; err != nil {
		t.Fatalf("recount events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("expected still one payment event, got %d", eventCount)
	}
}

func newLifecycle(t *testing.T, env *ordersEnv) LifecycleService {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(env.db), nil)
	lifecycle, err := NewLifecycleService(NewRepository(env.db), gormTxRunner{db: env.db}, events)
	if err != nil {
		t.Fatalf("build lifecycle: %v", err)
	}
	return lifecycle
}

func createPendingOrder(t *testing.T, env *ordersEnv) *models.Order {
	t.Helper()
	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   2500,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func countStatusEvents(t *testing.T, env *ordersEnv) int64 {
	t.Helper()
	var count int64
	if err := env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderStatusChanged).
		Count(&count).Error; err != nil {
		t.Fatalf("count status events: %v", err)
	}
	return count
}
