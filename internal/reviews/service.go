package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hvalleo/storefront-backend/pkg/db"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
)

const (
	minRating = 1
	maxRating = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cacheInvalidator interface {
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RatingRecomputedEvent is the payload emitted after an aggregate rewrite.
type RatingRecomputedEvent struct {
	ProductID     uuid.UUID `json:"product_id"`
	RatingAverage float64   `json:"rating_average"`
	RatingCount   int       `json:"rating_count"`
}

// ReviewInput carries the mutable review fields.
type ReviewInput struct {
	Rating int
	Title  *string
	Body   *string
}

// Service exposes review operations. The product's rating aggregate is a
// derived value: every mutation recomputes it from the full review set in
// the same transaction, so it can never drift.
type Service interface {
	CreateReview(ctx context.Context, shopperID, productID uuid.UUID, input ReviewInput) (*models.Review, error)
	UpdateReview(ctx context.Context, shopperID, reviewID uuid.UUID, input ReviewInput) (*models.Review, error)
	DeleteReview(ctx context.Context, shopperID, reviewID uuid.UUID) error
	ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error)
}

type service struct {
	repo    ReviewRepository
	tx      txRunner
	catalog productLoader
	cache   cacheInvalidator
	events  eventEmitter
}

// NewService builds a review service. Cache and events are optional.
func NewService(repo ReviewRepository, tx txRunner, catalog productLoader, cache cacheInvalidator, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		cache:   cache,
		events:  events,
	}, nil
}

// CreateReview adds the shopper's review for a product. A shopper holds at
// most one review per product.
func (s *service) CreateReview(ctx context.Context, shopperID, productID uuid.UUID, input ReviewInput) (*models.Review, error) {
	if shopperID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper and product ids are required")
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByProductAndShopper(ctx, productID, shopperID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shopper already reviewed this product")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup existing review")
	}

	var created *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.Create(ctx, &models.Review{
			ProductID: productID,
			ShopperID: shopperID,
			Rating:    input.Rating,
			Title:     input.Title,
			Body:      input.Body,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_reviews_product_shopper") {
				return pkgerrors.New(pkgerrors.CodeConflict, "shopper already reviewed this product")
			}
			return err
		}
		created = record
		return s.recomputeRating(ctx, tx, repo, productID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist review")
	}

	s.invalidate(ctx, productID)
	return created, nil
}

// UpdateReview rewrites the shopper's own review.
func (s *service) UpdateReview(ctx context.Context, shopperID, reviewID uuid.UUID, input ReviewInput) (*models.Review, error) {
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}

	record, err := s.loadOwned(ctx, shopperID, reviewID)
	if err != nil {
		return nil, err
	}

	var updated *models.Review
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record.Rating = input.Rating
		record.Title = input.Title
		record.Body = input.Body
		saved, err := repo.Update(ctx, record)
		if err != nil {
			return err
		}
		updated = saved
		return s.recomputeRating(ctx, tx, repo, record.ProductID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist review")
	}

	s.invalidate(ctx, record.ProductID)
	return updated, nil
}

// DeleteReview removes the shopper's own review.
func (s *service) DeleteReview(ctx context.Context, shopperID, reviewID uuid.UUID) error {
	record, err := s.loadOwned(ctx, shopperID, reviewID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Delete(ctx, record.ID); err != nil {
			return err
		}
		return s.recomputeRating(ctx, tx, repo, record.ProductID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}

	s.invalidate(ctx, record.ProductID)
	return nil
}

// ListReviews returns a page of a product's reviews plus the next cursor.
func (s *service) ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	if productID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	rows, err := s.repo.ListByProduct(ctx, productID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// recomputeRating rewrites the product aggregate from the current review set.
func (s *service) recomputeRating(ctx context.Context, tx *gorm.DB, repo ReviewRepository, productID uuid.UUID) error {
	average, count, err := repo.AggregateForProduct(ctx, productID)
	if err != nil {
		return err
	}
	average = math.Round(average*100) / 100
	if err := repo.UpdateProductRating(ctx, productID, average, count); err != nil {
		return err
	}
	if s.events != nil {
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRatingRecomputed,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Data: RatingRecomputedEvent{
				ProductID:     productID,
				RatingAverage: average,
				RatingCount:   count,
			},
		})
	}
	return nil
}

func (s *service) loadOwned(ctx context.Context, shopperID, reviewID uuid.UUID) (*models.Review, error) {
	if shopperID == uuid.Nil || reviewID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper and review ids are required")
	}
	record, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if record.ShopperID != shopperID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another shopper")
	}
	return record, nil
}

func (s *service) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateProduct(ctx, productID)
	}
}

func validateRating(rating int) error {
	if rating < minRating || rating > maxRating {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "rating must be between %d and %d", minRating, maxRating)
	}
	return nil
}
