package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hvalleo/storefront-backend/pkg/db"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/outbox"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// maxOrderNumberAttempts bounds regeneration when a random suffix collides.
const maxOrderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

type stockWriter interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartClearer interface {
	ClearCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
}

// OrderItemInput references one purchased line.
type OrderItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// CreateOrderInput carries the checkout payload. Monetary fields come from
// the caller; the service computes the grand total from them.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress types.Address
	BillingAddress  *types.Address
	PaymentMethod   enums.PaymentMethod
	SubtotalCents   int64
	TaxCents        int64
	ShippingCents   int64
	DiscountCents   int64
	Notes           *string
	ClearCart       bool
}

// Service assembles immutable orders out of validated line items.
type Service interface {
	CreateOrder(ctx context.Context, shopperID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, shopperID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, shopperID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	repo    OrderRepository
	tx      txRunner
	catalog productLoader
	stock   stockWriter
	events  eventEmitter
	cart    cartClearer
	now     func() time.Time
}

// NewService builds the order assembler. The cart clearer is optional;
// without one, checkout leaves the cart untouched.
func NewService(repo OrderRepository, tx txRunner, catalog productLoader, stock stockWriter, events eventEmitter, cart cartClearer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock writer required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		stock:   stock,
		events:  events,
		cart:    cart,
		now:     time.Now,
	}, nil
}

// CreateOrder validates the line items, decrements stock inside the creation
// transaction, and persists the snapshot with pending statuses. Stock is
// re-validated at commit time, so a sold-out line rejects the whole order.
func (s *service) CreateOrder(ctx context.Context, shopperID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if field := input.ShippingAddress.Validate(); field != "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "shipping address missing %s", field)
	}
	if input.SubtotalCents < 0 || input.TaxCents < 0 || input.ShippingCents < 0 || input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "monetary amounts must be non-negative")
	}

	billing := input.ShippingAddress
	if input.BillingAddress != nil {
		if field := input.BillingAddress.Validate(); field != "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "billing address missing %s", field)
		}
		billing = *input.BillingAddress
	}

	items, err := s.buildItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	totalCents := input.SubtotalCents + input.TaxCents + input.ShippingCents - input.DiscountCents
	if totalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order value")
	}

	var created *models.Order
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		orderNumber, err := generateOrderNumber(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			for _, item := range input.Items {
				if item.VariantID == nil {
					continue
				}
				if err := s.stock.ApplyDelta(ctx, tx, *item.VariantID, -item.Quantity); err != nil {
					return err
				}
			}

			record := &models.Order{
				OrderNumber:     orderNumber,
				ShopperID:       shopperID,
				Status:          enums.OrderStatusPending,
				PaymentStatus:   enums.PaymentStatusPending,
				PaymentMethod:   input.PaymentMethod,
				SubtotalCents:   input.SubtotalCents,
				TaxCents:        input.TaxCents,
				ShippingCents:   input.ShippingCents,
				DiscountCents:   input.DiscountCents,
				TotalCents:      totalCents,
				ShippingAddress: input.ShippingAddress,
				BillingAddress:  billing,
				Notes:           input.Notes,
				Items:           items,
			}

			saved, err := s.repo.WithTx(tx).Create(ctx, record)
			if err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   saved.ID,
				Shopper:       &outbox.ShopperRef{ShopperID: shopperID},
				Data: OrderCreatedEvent{
					OrderID:     saved.ID,
					OrderNumber: saved.OrderNumber,
					ShopperID:   shopperID,
					TotalCents:  saved.TotalCents,
				},
			}); err != nil {
				return err
			}

			created = saved
			return nil
		})
		if err == nil {
			break
		}
		if dbpkg.IsUniqueViolation(err, "idx_orders_number") {
			created = nil
			continue
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}
	if created == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique order number")
	}

	// Checkout consumes the cart. Best effort; the order stands either way.
	if input.ClearCart && s.cart != nil {
		_, _ = s.cart.ClearCart(ctx, shopperID)
	}

	return created, nil
}

func (s *service) buildItems(ctx context.Context, inputs []OrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, payload := range inputs {
		if payload.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if payload.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}

		product, err := s.catalog.GetProduct(ctx, payload.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := product.PriceCents
		var variantName *string
		if payload.VariantID != nil {
			variant, err := s.catalog.GetVariant(ctx, payload.ProductID, *payload.VariantID)
			if err != nil {
				return nil, err
			}
			unitPrice = variant.EffectivePriceCents(product.PriceCents)
			name := variant.Name
			variantName = &name
		}

		items = append(items, models.OrderItem{
			ProductID:      payload.ProductID,
			VariantID:      payload.VariantID,
			ProductTitle:   product.Title,
			VariantName:    variantName,
			Quantity:       payload.Quantity,
			UnitPriceCents: unitPrice,
			LineTotalCents: unitPrice * int64(payload.Quantity),
		})
	}
	return items, nil
}

// GetOrder loads an order and enforces shopper ownership.
func (s *service) GetOrder(ctx context.Context, shopperID, orderID uuid.UUID) (*models.Order, error) {
	if shopperID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper and order ids are required")
	}
	record, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if record.ShopperID != shopperID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another shopper")
	}
	return record, nil
}

// ListOrders returns a page of the shopper's orders plus the next cursor.
func (s *service) ListOrders(ctx context.Context, shopperID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if shopperID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	rows, err := s.repo.ListByShopper(ctx, shopperID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
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
