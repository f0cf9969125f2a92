package cron

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hvalleo/storefront-backend/pkg/logger"
)

const defaultReconcileWindow = 24 * time.Hour

// RatingReconcileJobParams configures the rating reconcile job.
type RatingReconcileJobParams struct {
	Logger     *logger.Logger
	Repository ratingsRepository
	Cache      productCacheInvalidator
	Window     time.Duration
}

// ratingsRepository exposes the review aggregate surface used by the job.
type ratingsRepository interface {
	ProductsReviewedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	AggregateForProduct(ctx context.Context, productID uuid.UUID) (float64, int, error)
	UpdateProductRating(ctx context.Context, productID uuid.UUID, average float64, count int) error
}

type productCacheInvalidator interface {
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

// NewRatingReconcileJob constructs the rating reconcile cron job. Reviews
// recompute the product aggregate inline; this job re-derives it for recently
// reviewed products so any drift is short-lived.
func NewRatingReconcileJob(params RatingReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultReconcileWindow
	}
	return &ratingReconcileJob{
		logg:   params.Logger,
		repo:   params.Repository,
		cache:  params.Cache,
		window: window,
		now:    time.Now,
	}, nil
}

type ratingReconcileJob struct {
	logg   *logger.Logger
	repo   ratingsRepository
	cache  productCacheInvalidator
	window time.Duration
	now    func() time.Time
}

func (j *ratingReconcileJob) Name() string { return "rating-reconcile" }

func (j *ratingReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	productIDs, err := j.repo.ProductsReviewedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("query reviewed products: %w", err)
	}

	var errs []error
	reconciled := 0
	for _, productID := range productIDs {
		if err := j.reconcile(ctx, productID); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
			continue
		}
		reconciled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"window":     j.window.String(),
		"candidates": len(productIDs),
		"reconciled": reconciled,
	})
	j.logg.Info(logCtx, "rating reconcile complete")
	return multierr.Combine(errs...)
}

func (j *ratingReconcileJob) reconcile(ctx context.Context, productID uuid.UUID) error {
	average, count, err := j.repo.AggregateForProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	average = math.Round(average*100) / 100
	if err := j.repo.UpdateProductRating(ctx, productID, average, count); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if j.cache != nil {
		j.cache.InvalidateProduct(ctx, productID)
	}
	return nil
}
