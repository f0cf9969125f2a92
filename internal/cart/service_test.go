package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
)

func TestGetOrCreateCartIsStable(t *testing.T) {
	t.Parallel()

	svc, _ := newTestStack(t)
	shopper := uuid.New()

	first, err := svc.GetOrCreateCart(context.Background(), shopper)
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	second, err := svc.GetOrCreateCart(context.Background(), shopper)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one cart per shopper, got %s and %s", first.ID, second.ID)
	}
	if second.Version != 0 || second.SubtotalCents != 0 || len(second.Items) != 0 {
		t.Fatalf("expected pristine cart, got %+v", second)
	}
}

func TestAddItemMergesLines(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart after first add: %+v", cart.Items)
	}

	cart, err = svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(cart.Items))
	}
	line := cart.Items[0]
	if line.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", line.Quantity)
	}
	if line.UnitPriceCents != 2500 || line.LineTotalCents != 12500 {
		t.Fatalf("unexpected line pricing: %+v", line)
	}
	if cart.SubtotalCents != 12500 || cart.ItemCount != 5 {
		t.Fatalf("unexpected totals: subtotal=%d count=%d", cart.SubtotalCents, cart.ItemCount)
	}
}

func TestAddItemKeepsPriceSnapshot(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Catalog price changes after the line was captured.
	env.product.PriceCents = 9900

	cart, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if cart.Items[0].UnitPriceCents != 2500 {
		t.Fatalf("expected snapshotted unit price 2500, got %d", cart.Items[0].UnitPriceCents)
	}
	if cart.SubtotalCents != 5000 {
		t.Fatalf("expected subtotal 5000, got %d", cart.SubtotalCents)
	}
}

func TestAddItemQuantityCeiling(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 0}); err == nil {
		t.Fatal("expected validation error for zero qty")
	}
	if _, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 100}); err == nil {
		t.Fatal("expected validation error above ceiling")
	}

	if _, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 60}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 60})
	if err == nil {
		t.Fatal("expected merged quantity to exceed ceiling")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddItemHonorsVariantStock(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	env.stock.available = 5
	shopper := uuid.New()
	ctx := context.Background()
	variantID := env.variant.ID

	if _, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, VariantID: &variantID, Quantity: 3}); err != nil {
		t.Fatalf("first add within stock: %v", err)
	}

	_, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, VariantID: &variantID, Quantity: 3})
	if err == nil {
		t.Fatal("expected insufficient stock for merged quantity 6")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVariantPriceOverride(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	variantID := env.variant.ID

	cart, err := svc.AddItem(context.Background(), shopper, AddItemInput{ProductID: env.product.ID, VariantID: &variantID, Quantity: 2})
	if err != nil {
		t.Fatalf("add variant line: %v", err)
	}
	if cart.Items[0].UnitPriceCents != 3000 {
		t.Fatalf("expected variant price 3000, got %d", cart.Items[0].UnitPriceCents)
	}
}

func TestUpdateItemQuantity(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err = svc.UpdateItemQuantity(ctx, shopper, cart.Items[0].ID, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cart.Items[0].Quantity != 7 || cart.SubtotalCents != 17500 {
		t.Fatalf("unexpected cart after update: %+v", cart)
	}

	if _, err := svc.UpdateItemQuantity(ctx, shopper, uuid.New(), 3); err == nil {
		t.Fatal("expected not found for unknown line")
	}
	if _, err := svc.UpdateItemQuantity(ctx, shopper, cart.Items[0].ID, 0); err == nil {
		t.Fatal("expected validation error for zero qty")
	}
}

func TestRemoveItemAndClear(t *testing.T) {
	t.Parallel()

	svc, env := newTestStack(t)
	shopper := uuid.New()
	ctx := context.Background()
	variantID := env.variant.ID

	cart, err := svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add one: %v", err)
	}
	cart, err = svc.AddItem(ctx, shopper, AddItemInput{ProductID: env.product.ID, VariantID: &variantID, Quantity: 2})
	if err != nil {
		t.Fatalf("add two: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected two distinct lines, got %d", len(cart.Items))
	}

	cart, err = svc.RemoveItem(ctx, shopper, cart.Items[0].ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one line after removal, got %d", len(cart.Items))
	}

	if _, err := svc.RemoveItem(ctx, shopper, uuid.New()); err == nil {
		t.Fatal("expected not found for unknown line")
	}

	cart, err = svc.ClearCart(ctx, shopper)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(cart.Items) != 0 || cart.SubtotalCents != 0 || cart.ItemCount != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

type testEnv struct {
	product *models.Product
	variant *models.ProductVariant
	stock   *stubStock
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

type stubStock struct {
	available int
}

func (s *stubStock) CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty > s.available {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"available": s.available, "requested": qty})
	}
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestStack(t *testing.T) (Service, *testEnv) {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Cart{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate cart tables: %v", err)
	}

	variantPrice := int64(3000)
	product := &models.Product{ID: uuid.New(), Title: "Canvas Tote", PriceCents: 2500, IsActive: true}
	variant := &models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  product.ID,
		SKU:        "TOTE-L",
		Name:       "Large",
		PriceCents: &variantPrice,
		IsActive:   true,
	}
	stock := &stubStock{available: 100}

	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		&stubCatalog{product: product, variant: variant},
		stock,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, &testEnv{product: product, variant: variant, stock: stock}
}
