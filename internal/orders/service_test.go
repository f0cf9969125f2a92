package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/internal/inventory"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

func TestCreateOrderComputesTotal(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	shopper := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), shopper, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   1000,
		TaxCents:        100,
		ShippingCents:   50,
		DiscountCents:   50,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TotalCents != 1100 {
		t.Fatalf("expected total 1100, got %d", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending statuses, got %s/%s", order.Status, order.PaymentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPriceCents != 2500 || order.Items[0].LineTotalCents != 5000 {
		t.Fatalf("unexpected items snapshot: %+v", order.Items)
	}
	if order.BillingAddress.Line1 != order.ShippingAddress.Line1 {
		t.Fatalf("expected billing to default to shipping")
	}

	var eventCount int64
	if err := env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCreated).
		Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("expected one order_created event, got %d", eventCount)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)

	_, err := env.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
	})
	if err == nil {
		t.Fatal("expected validation error for empty items")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)

	_, err := env.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: uuid.New(), Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   1000,
	})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrderDecrementsStockAtCommit(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	shopper := uuid.New()
	variantID := env.variant.ID

	order, err := env.svc.CreateOrder(context.Background(), shopper, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, VariantID: &variantID, Quantity: 3}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   9000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order == nil {
		t.Fatal("expected order")
	}

	var variant models.ProductVariant
	if err := env.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQty != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", variant.StockQty)
	}

	// A second order for more than the remaining stock rejects atomically.
	_, err = env.svc.CreateOrder(context.Background(), shopper, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, VariantID: &variantID, Quantity: 3}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   9000,
	})
	if err == nil {
		t.Fatal("expected insufficient stock at commit")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var orderCount int64
	if err := env.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected the failed order not to persist, got %d orders", orderCount)
	}
	if err := env.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.StockQty != 2 {
		t.Fatalf("expected stock unchanged after rejection, got %d", variant.StockQty)
	}
}

func TestCreateOrderExplicitBillingAddress(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	billing := testAddress()
	billing.Line1 = "99 Invoice Road"

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		BillingAddress:  &billing,
		PaymentMethod:   enums.PaymentMethodPaypal,
		SubtotalCents:   2500,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.BillingAddress.Line1 != "99 Invoice Road" {
		t.Fatalf("expected explicit billing address, got %q", order.BillingAddress.Line1)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	owner := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), owner, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: env.product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   2500,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := env.svc.GetOrder(context.Background(), owner, order.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err = env.svc.GetOrder(context.Background(), uuid.New(), order.ID)
	if err == nil {
		t.Fatal("expected forbidden for foreign shopper")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.svc.GetOrder(context.Background(), owner, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateOrderNumberShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	number, err := generateOrderNumber(now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(number, "ORD-20260824-") {
		t.Fatalf("unexpected prefix: %q", number)
	}
	if len(number) != len("ORD-20260824-")+orderNumberSuffixLen {
		t.Fatalf("unexpected length: %q", number)
	}
}

type ordersEnv struct {
	db      *gorm.DB
	svc     Service
	product *models.Product
	variant *models.ProductVariant
}

type stubCatalog struct {
	product *models.Product
	variant *models.ProductVariant
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.product, nil
}

func (s *stubCatalog) GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	if s.variant == nil || s.variant.ID != variantID || s.variant.ProductID != productID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return s.variant, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newOrdersEnv(t *testing.T) *ordersEnv {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.ProductVariant{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	product := &models.Product{ID: uuid.New(), Title: "Canvas Tote", PriceCents: 2500, IsActive: true}
	variantPrice := int64(3000)
	variant := &models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  product.ID,
		SKU:        "TOTE-L",
		Name:       "Large",
		PriceCents: &variantPrice,
		StockQty:   5,
		IsActive:   true,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	runner := gormTxRunner{db: db}
	stock, err := inventory.NewService(inventory.NewRepository(db), runner, nil)
	if err != nil {
		t.Fatalf("build inventory: %v", err)
	}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(
		NewRepository(db),
		runner,
		&stubCatalog{product: product, variant: variant},
		stock,
		events,
		nil,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &ordersEnv{db: db, svc: svc, product: product, variant: variant}
}

func testAddress() types.Address {
	return types.Address{
		FullName:   "Jordan Reyes",
		Line1:      "12 Harbor Street",
		City:       "Portsmouth",
		State:      "NH",
		PostalCode: "03801",
		Country:    "US",
	}
}
