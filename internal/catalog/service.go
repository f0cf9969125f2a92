package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
	"github.com/hvalleo/storefront-backend/pkg/redis"
)

// ProductRepository defines the persistence surface required by the service.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	List(ctx context.Context, params pagination.Params) ([]models.Product, error)
	UpdateRating(ctx context.Context, productID uuid.UUID, average float64, count int) error
}

type productCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ProductCacheKey(productID string) string
}

// Service exposes catalog reads with a read-through cache. Writes that affect
// product state go through InvalidateProduct so stale entries never linger
// past a mutation.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	ListProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error)
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type service struct {
	repo     ProductRepository
	cache    productCache
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService builds a catalog service. The cache is optional; a nil cache
// degrades to direct reads.
func NewService(repo ProductRepository, cache productCache, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

// GetProduct returns a product, serving from cache when possible.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	if s.cache != nil {
		key := s.cache.ProductCacheKey(id.String())
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached models.Product
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if s.cache != nil {
		if raw, jsonErr := json.Marshal(row); jsonErr == nil {
			key := s.cache.ProductCacheKey(id.String())
			if setErr := s.cache.Set(ctx, key, string(raw), s.cacheTTL); setErr != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", setErr.Error()), "product cache write failed")
			}
		}
	}

	return row, nil
}

// GetVariant returns a variant scoped to its product.
func (s *service) GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	if productID == uuid.Nil || variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and variant ids are required")
	}
	row, err := s.repo.FindVariant(ctx, productID, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return row, nil
}

// ListProducts returns a page of active products plus the cursor for the next
// page, empty when the listing is exhausted.
func (s *service) ListProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return rows, next, nil
}

// InvalidateProduct drops the cached copy. Best effort; a miss on the next
// read repopulates it.
func (s *service) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	if s.cache == nil || id == uuid.Nil {
		return
	}
	key := s.cache.ProductCacheKey(id.String())
	if err := s.cache.Del(ctx, key); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product cache invalidation failed")
	}
}

var _ productCache = (*redis.Client)(nil)
