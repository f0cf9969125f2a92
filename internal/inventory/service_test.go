package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
)

func TestApplyDeltaEnforcesFloor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	variantID := seedVariant(t, db, 5)

	if err := svc.ApplyDelta(ctx, db, variantID, -3); err != nil {
		t.Fatalf("first decrement: %v", err)
	}

	err := svc.ApplyDelta(ctx, db, variantID, -3)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["available"] != 2 || details["requested"] != 3 {
		t.Fatalf("unexpected details: %+v", details)
	}

	var row models.ProductVariant
	if err := db.First(&row, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if row.StockQty != 2 {
		t.Fatalf("expected stock 2 after failed decrement, got %d", row.StockQty)
	}
}

func TestApplyDeltaExactDrain(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	variantID := seedVariant(t, db, 4)

	if err := svc.ApplyDelta(ctx, db, variantID, -4); err != nil {
		t.Fatalf("drain to zero: %v", err)
	}

	var row models.ProductVariant
	if err := db.First(&row, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if row.StockQty != 0 {
		t.Fatalf("expected stock 0, got %d", row.StockQty)
	}
}

func TestApplyDeltaUnknownVariant(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	err := svc.ApplyDelta(context.Background(), db, uuid.New(), -1)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	variantID := seedVariant(t, db, 2)

	if err := svc.CheckAvailability(ctx, variantID, 2); err != nil {
		t.Fatalf("expected availability, got %v", err)
	}
	if err := svc.CheckAvailability(ctx, variantID, 3); err == nil {
		t.Fatal("expected insufficient stock")
	}
	if err := svc.CheckAvailability(ctx, variantID, 0); err == nil {
		t.Fatal("expected validation error for zero qty")
	}
}

func TestRestock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	variantID := seedVariant(t, db, 1)

	updated, err := svc.Restock(ctx, variantID, 9)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.StockQty != 10 {
		t.Fatalf("expected stock 10, got %d", updated.StockQty)
	}

	if _, err := svc.Restock(ctx, variantID, 0); err == nil {
		t.Fatal("expected validation error for zero qty")
	}
	if _, err := svc.Restock(ctx, uuid.New(), 5); err == nil {
		t.Fatal("expected not found for unknown variant")
	}
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedVariant(t *testing.T, db *gorm.DB, stock int) uuid.UUID {
	t.Helper()
	row := models.ProductVariant{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		SKU:       "SKU-" + uuid.NewString()[:8],
		Name:      "Default",
		StockQty:  stock,
		IsActive:  true,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return row.ID
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductVariant{}); err != nil {
		t.Fatalf("migrate variants: %v", err)
	}
	return db
}
