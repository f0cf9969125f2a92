package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/responses"
	"github.com/hvalleo/storefront-backend/api/validators"
	catalogsvc "github.com/hvalleo/storefront-backend/internal/catalog"
	inventorysvc "github.com/hvalleo/storefront-backend/internal/inventory"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// ProductList serves the public catalog listing with cursor pagination.
func ProductList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, cursor, err := svc.ListProducts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]productResponse, len(rows))
		for i := range rows {
			items[i] = newProductResponse(&rows[i])
		}
		responses.WriteSuccess(w, listEnvelope[productResponse]{Items: items, Cursor: cursor})
	}
}

// ProductDetail serves a single product with its variants.
func ProductDetail(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(record))
	}
}

// VariantRestock adds stock to a variant and invalidates the cached product.
func VariantRestock(inventory inventorysvc.Service, catalog catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if inventory == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		variantID, err := pathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := inventory.Restock(r.Context(), variantID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if catalog != nil {
			catalog.InvalidateProduct(r.Context(), variant.ProductID)
		}
		responses.WriteSuccess(w, newVariantResponse(variant, 0))
	}
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type listEnvelope[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor,omitempty"`
}

type productResponse struct {
	ID            uuid.UUID         `json:"id"`
	Slug          string            `json:"slug"`
	Title         string            `json:"title"`
	Description   *string           `json:"description,omitempty"`
	Category      string            `json:"category"`
	Tags          []string          `json:"tags"`
	PriceCents    int64             `json:"price_cents"`
	Price         string            `json:"price"`
	Currency      string            `json:"currency"`
	IsActive      bool              `json:"is_active"`
	RatingAverage float64           `json:"rating_average"`
	RatingCount   int               `json:"rating_count"`
	Variants      []variantResponse `json:"variants,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type variantResponse struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
	StockQty   int       `json:"stock_qty"`
	IsActive   bool      `json:"is_active"`
}

func newProductResponse(record *models.Product) productResponse {
	resp := productResponse{
		ID:            record.ID,
		Slug:          record.Slug,
		Title:         record.Title,
		Description:   record.Description,
		Category:      record.Category,
		Tags:          record.Tags,
		PriceCents:    record.PriceCents,
		Price:         types.FormatCents(record.PriceCents),
		Currency:      record.Currency,
		IsActive:      record.IsActive,
		RatingAverage: record.RatingAverage,
		RatingCount:   record.RatingCount,
		CreatedAt:     record.CreatedAt,
	}
	for i := range record.Variants {
		resp.Variants = append(resp.Variants, newVariantResponse(&record.Variants[i], record.PriceCents))
	}
	return resp
}

func newVariantResponse(record *models.ProductVariant, productPriceCents int64) variantResponse {
	price := record.EffectivePriceCents(productPriceCents)
	return variantResponse{
		ID:         record.ID,
		ProductID:  record.ProductID,
		SKU:        record.SKU,
		Name:       record.Name,
		PriceCents: price,
		Price:      types.FormatCents(price),
		StockQty:   record.StockQty,
		IsActive:   record.IsActive,
	}
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
