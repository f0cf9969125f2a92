package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
)

func TestVariantRestockInvalidatesProduct(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	variantID := uuid.New()

	inventory := &stubInventoryService{
		restockFn: func(ctx context.Context, id uuid.UUID, qty int) (*models.ProductVariant, error) {
			if id != variantID || qty != 7 {
				t.Fatalf("unexpected restock call: %s %d", id, qty)
			}
			return &models.ProductVariant{
				ID:        variantID,
				ProductID: productID,
				SKU:       "TOTE-L",
				Name:      "Large",
				StockQty:  12,
				IsActive:  true,
			}, nil
		},
	}
	catalog := &stubCatalogService{}

	router := chi.NewRouter()
	router.Post("/variants/{variantId}/restock", VariantRestock(inventory, catalog, nil))

	body := `{"quantity":7}`
	req := httptest.NewRequest(http.MethodPost, "/variants/"+variantID.String()+"/restock", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(catalog.invalidated) != 1 || catalog.invalidated[0] != productID {
		t.Fatalf("expected product cache invalidation, got %v", catalog.invalidated)
	}

	var resp struct {
		Data variantResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Data.StockQty != 12 {
		t.Fatalf("unexpected stock: %+v", resp.Data)
	}
}

func TestVariantRestockRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Post("/variants/{variantId}/restock", VariantRestock(&stubInventoryService{}, &stubCatalogService{}, nil))

	body := `{"quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/variants/"+uuid.NewString()+"/restock", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}
}

func TestProductDetailInvalidID(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/products/{productId}", ProductDetail(&stubCatalogService{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

type stubInventoryService struct {
	restockFn func(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error)
}

func (s *stubInventoryService) CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) error {
	return nil
}

func (s *stubInventoryService) ApplyDelta(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) error {
	return nil
}

func (s *stubInventoryService) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error) {
	if s.restockFn != nil {
		return s.restockFn(ctx, variantID, qty)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
}

type stubCatalogService struct {
	invalidated []uuid.UUID
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubCatalogService) GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
}

func (s *stubCatalogService) ListProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	return nil, "", nil
}

func (s *stubCatalogService) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	s.invalidated = append(s.invalidated, id)
}
