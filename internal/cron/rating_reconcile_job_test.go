package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/internal/reviews"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/logger"
)

func TestRatingReconcileFixesDriftedAggregate(t *testing.T) {
	t.Parallel()

	db := newCronTestDB(t)
	product := seedRatedProduct(t, db, []int{5, 4})

	// Simulate drift: the stored aggregate disagrees with the review rows.
	if err := db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{"rating_average": 1.0, "rating_count": 9}).Error; err != nil {
		t.Fatalf("inject drift: %v", err)
	}

	job, err := NewRatingReconcileJob(RatingReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: reviews.NewRepository(db),
		Window:     time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	var row models.Product
	if err := db.First(&row, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if row.RatingAverage != 4.5 || row.RatingCount != 2 {
		t.Fatalf("expected 4.5/2, got %v/%d", row.RatingAverage, row.RatingCount)
	}
}

func TestRatingReconcileSkipsQuietProducts(t *testing.T) {
	t.Parallel()

	db := newCronTestDB(t)
	product := seedRatedProduct(t, db, []int{3})

	// Push the reviews outside the reconcile window, then drift the aggregate.
	stale := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Model(&models.Review{}).
		Where("product_id = ?", product.ID).
		UpdateColumn("updated_at", stale).Error; err != nil {
		t.Fatalf("age reviews: %v", err)
	}
	if err := db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		UpdateColumn("rating_count", 7).Error; err != nil {
		t.Fatalf("inject drift: %v", err)
	}

	job, err := NewRatingReconcileJob(RatingReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: reviews.NewRepository(db),
		Window:     time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	var row models.Product
	if err := db.First(&row, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if row.RatingCount != 7 {
		t.Fatalf("expected drift untouched outside window, got count %d", row.RatingCount)
	}
}

func newCronTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Review{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRatedProduct(t *testing.T, db *gorm.DB, ratings []int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		Slug:       "enamel-mug",
		Title:      "Enamel Mug",
		Category:   "kitchen",
		PriceCents: 1800,
		IsActive:   true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	for _, rating := range ratings {
		review := &models.Review{
			ID:        uuid.New(),
			ProductID: product.ID,
			ShopperID: uuid.New(),
			Rating:    rating,
		}
		if err := db.Create(review).Error; err != nil {
			t.Fatalf("seed review: %v", err)
		}
	}
	return product
}
