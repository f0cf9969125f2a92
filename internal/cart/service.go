package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hvalleo/storefront-backend/pkg/db"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
)

const (
	// MaxLineQuantity caps any single merged cart line.
	MaxLineQuantity = 99
	// maxMutationAttempts bounds optimistic retries before giving up.
	maxMutationAttempts = 3
)

var errVersionConflict = errors.New("cart version conflict")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

type stockChecker interface {
	CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) error
}

// AddItemInput carries the payload for adding a line to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Service exposes cart operations. Every mutation recomputes totals and
// commits through a version check, so two concurrent writers cannot both win.
type Service interface {
	GetOrCreateCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, shopperID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, shopperID, itemID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog productLoader
	stock   stockChecker
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalog productLoader, stock stockChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		stock:   stock,
	}, nil
}

// GetOrCreateCart returns the shopper's cart, creating an empty one on first
// use. A create race against another request resolves to the winner's row.
func (s *service) GetOrCreateCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}

	record, err := s.repo.FindByShopper(ctx, shopperID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{ShopperID: shopperID})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_carts_shopper") {
			record, findErr := s.repo.FindByShopper(ctx, shopperID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load cart after create race")
			}
			return record, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// AddItem appends a product to the cart, merging into an existing line when
// the same product/variant pair is already present. The unit price is
// snapshotted from the catalog at add time.
func (s *service) AddItem(ctx context.Context, shopperID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 || input.Quantity > MaxLineQuantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", MaxLineQuantity)
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	unitPrice := product.PriceCents
	if input.VariantID != nil {
		variant, err := s.catalog.GetVariant(ctx, input.ProductID, *input.VariantID)
		if err != nil {
			return nil, err
		}
		if !variant.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not available")
		}
		unitPrice = variant.EffectivePriceCents(product.PriceCents)
	}

	return s.mutate(ctx, shopperID, true, func(cart *models.Cart, repo CartRepository) error {
		existing := findLine(cart.Items, input.ProductID, input.VariantID)
		mergedQty := input.Quantity
		if existing != nil {
			mergedQty += existing.Quantity
		}
		if mergedQty > MaxLineQuantity {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", MaxLineQuantity)
		}
		if input.VariantID != nil {
			if err := s.stock.CheckAvailability(ctx, *input.VariantID, mergedQty); err != nil {
				return err
			}
		}

		if existing != nil {
			lineTotal := existing.UnitPriceCents * int64(mergedQty)
			return repo.UpdateItemQuantity(ctx, existing.ID, mergedQty, lineTotal)
		}
		return repo.CreateItem(ctx, &models.CartItem{
			CartID:         cart.ID,
			ProductID:      input.ProductID,
			VariantID:      input.VariantID,
			Quantity:       input.Quantity,
			UnitPriceCents: unitPrice,
			LineTotalCents: unitPrice * int64(input.Quantity),
		})
	})
}

// UpdateItemQuantity rewrites a line's quantity, keeping the snapshotted
// unit price.
func (s *service) UpdateItemQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*models.Cart, error) {
	if qty < 1 || qty > MaxLineQuantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", MaxLineQuantity)
	}

	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, repo CartRepository) error {
		line := findLineByID(cart.Items, itemID)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if line.VariantID != nil {
			if err := s.stock.CheckAvailability(ctx, *line.VariantID, qty); err != nil {
				return err
			}
		}
		return repo.UpdateItemQuantity(ctx, line.ID, qty, line.UnitPriceCents*int64(qty))
	})
}

// RemoveItem deletes a single line from the cart.
func (s *service) RemoveItem(ctx context.Context, shopperID, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, repo CartRepository) error {
		line := findLineByID(cart.Items, itemID)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return repo.DeleteItem(ctx, line.ID)
	})
}

// ClearCart removes every line, leaving an empty cart behind.
func (s *service) ClearCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, repo CartRepository) error {
		return repo.DeleteItemsByCart(ctx, cart.ID)
	})
}

// mutate runs fn against the shopper's cart inside a transaction, recomputes
// totals, and commits via the version check. Lost races retry a bounded
// number of times before surfacing a conflict.
func (s *service) mutate(ctx context.Context, shopperID uuid.UUID, createIfMissing bool, fn func(cart *models.Cart, repo CartRepository) error) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}

	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		var result *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			cart, err := repo.FindByShopper(ctx, shopperID)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				if !createIfMissing {
					return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
				}
				cart, err = repo.Create(ctx, &models.Cart{ShopperID: shopperID})
				if err != nil {
					return err
				}
			}

			if err := fn(cart, repo); err != nil {
				return err
			}

			items, err := repo.ListItems(ctx, cart.ID)
			if err != nil {
				return err
			}
			var subtotal int64
			var count int
			for _, item := range items {
				subtotal += item.LineTotalCents
				count += item.Quantity
			}

			ok, err := repo.SaveTotalsCAS(ctx, cart.ID, cart.Version, subtotal, count)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}

			result, err = repo.FindByID(ctx, cart.ID)
			return err
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return nil, typed
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
		}
		return result, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently, retry the request")
}

func findLine(items []models.CartItem, productID uuid.UUID, variantID *uuid.UUID) *models.CartItem {
	for i := range items {
		item := &items[i]
		if item.ProductID != productID {
			continue
		}
		if sameVariant(item.VariantID, variantID) {
			return item
		}
	}
	return nil
}

func findLineByID(items []models.CartItem, itemID uuid.UUID) *models.CartItem {
	for i := range items {
		if items[i].ID == itemID {
			return &items[i]
		}
	}
	return nil
}

func sameVariant(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
