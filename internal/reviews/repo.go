package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
)

// ReviewRepository defines the persistence surface required by the service.
type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, record *models.Review) (*models.Review, error)
	Update(ctx context.Context, record *models.Review) (*models.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	FindByProductAndShopper(ctx context.Context, productID, shopperID uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, error)
	AggregateForProduct(ctx context.Context, productID uuid.UUID) (float64, int, error)
	UpdateProductRating(ctx context.Context, productID uuid.UUID, average float64, count int) error
}

// Repository exposes persistence operations for product reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ReviewRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new review.
func (r *Repository) Create(ctx context.Context, record *models.Review) (*models.Review, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Update saves the provided review.
func (r *Repository) Update(ctx context.Context, record *models.Review) (*models.Review, error) {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a review by id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Review{}).Error
}

// FindByID loads a review by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var record models.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByProductAndShopper loads the shopper's review of a product, if any.
func (r *Repository) FindByProductAndShopper(ctx context.Context, productID, shopperID uuid.UUID) (*models.Review, error) {
	var record models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND shopper_id = ?", productID, shopperID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByProduct returns a product's reviews newest first with cursor pagination.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Review
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ProductsReviewedSince returns the distinct products whose reviews changed
// after the cutoff. Used by the reconcile job to bound its recompute set.
func (r *Repository) ProductsReviewedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Distinct("product_id").
		Where("updated_at >= ?", since).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AggregateForProduct recomputes the rating aggregate from the full review
// set. An empty set yields 0/0.
func (r *Repository) AggregateForProduct(ctx context.Context, productID uuid.UUID) (float64, int, error) {
	var result struct {
		Average float64
		Count   int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	return result.Average, result.Count, nil
}

// UpdateProductRating writes the derived aggregate onto the product row.
func (r *Repository) UpdateProductRating(ctx context.Context, productID uuid.UUID, average float64, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"rating_average": average,
			"rating_count":   count,
		}).Error
}
