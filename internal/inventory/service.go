package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
)

// StockRepository defines the persistence surface required by the service.
type StockRepository interface {
	WithTx(tx *gorm.DB) StockRepository
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	ApplyDelta(ctx context.Context, variantID uuid.UUID, delta int) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockAdjustedEvent is the payload emitted after a manual restock.
type StockAdjustedEvent struct {
	VariantID uuid.UUID `json:"variant_id"`
	ProductID uuid.UUID `json:"product_id"`
	Delta     int       `json:"delta"`
	StockQty  int       `json:"stock_qty"`
}

// Service exposes stock ledger operations. Decrements are conditional at the
// database so concurrent buyers can never drive a quantity negative.
type Service interface {
	CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) error
	ApplyDelta(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) error
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error)
}

type service struct {
	repo   StockRepository
	tx     txRunner
	events eventEmitter
}

// NewService builds an inventory service backed by the provided stack.
// The event emitter is optional.
func NewService(repo StockRepository, tx txRunner, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, events: events}, nil
}

// CheckAvailability reports whether qty units can currently be taken. It is
// advisory only; the commit path re-validates under the same transaction that
// writes the decrement.
func (s *service) CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	variant, err := s.repo.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if variant.StockQty < qty {
		return insufficientStock(variant.StockQty, qty)
	}
	return nil
}

// ApplyDelta adjusts stock inside the caller's transaction. A negative delta
// that would cross the zero floor fails with the current availability.
func (s *service) ApplyDelta(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	applied, err := repo.ApplyDelta(ctx, variantID, delta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if applied {
		return nil
	}

	variant, err := repo.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return insufficientStock(variant.StockQty, -delta)
}

// Restock adds qty units and returns the updated variant.
func (s *service) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var updated *models.ProductVariant
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindVariant(ctx, variantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if _, err := repo.ApplyDelta(ctx, variantID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock variant")
		}
		row, err := repo.FindVariant(ctx, variantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant")
		}
		updated = row
		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockAdjusted,
				AggregateType: enums.AggregateVariant,
				AggregateID:   row.ID,
				Data: StockAdjustedEvent{
					VariantID: row.ID,
					ProductID: row.ProductID,
					Delta:     qty,
					StockQty:  row.StockQty,
				},
			})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func insufficientStock(available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"available": available,
			"requested": requested,
		})
}
