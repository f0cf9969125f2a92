package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/middleware"
	cartsvc "github.com/hvalleo/storefront-backend/internal/cart"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
)

func TestCartAddItemHappyPath(t *testing.T) {
	t.Parallel()

	shopper := uuid.New()
	product := uuid.New()
	stub := &stubCartService{
		addItemFn: func(ctx context.Context, shopperID uuid.UUID, input cartsvc.AddItemInput) (*models.Cart, error) {
			if shopperID != shopper {
				t.Fatalf("unexpected shopper %s", shopperID)
			}
			if input.ProductID != product || input.Quantity != 2 {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &models.Cart{
				ID:            uuid.New(),
				ShopperID:     shopperID,
				SubtotalCents: 5000,
				ItemCount:     2,
				Items: []models.CartItem{{
					ID:             uuid.New(),
					ProductID:      product,
					Quantity:       2,
					UnitPriceCents: 2500,
					LineTotalCents: 5000,
				}},
			}, nil
		},
	}

	body := `{"product_id":"` + product.String() + `","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithShopperID(req.Context(), shopper.String()))

	rec := httptest.NewRecorder()
	CartAddItem(stub, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data cartResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Data.SubtotalCents != 5000 || resp.Data.Subtotal != "50.00" {
		t.Fatalf("unexpected subtotal: %+v", resp.Data)
	}
	if len(resp.Data.Items) != 1 || resp.Data.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", resp.Data.Items)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	t.Parallel()

	stub := &stubCartService{
		addItemFn: func(ctx context.Context, shopperID uuid.UUID, input cartsvc.AddItemInput) (*models.Cart, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"available": 1, "requested": 3})
		},
	}

	body := `{"product_id":"` + uuid.NewString() + `","quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithShopperID(req.Context(), uuid.NewString()))

	rec := httptest.NewRecorder()
	CartAddItem(stub, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %q", resp.Error.Code)
	}
	if resp.Error.Details["available"] != float64(1) {
		t.Fatalf("unexpected details: %+v", resp.Error.Details)
	}
}

func TestCartAddItemRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	stub := &stubCartService{}

	body := `{"product_id":"` + uuid.NewString() + `","quantity":1,"price_cents":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithShopperID(req.Context(), uuid.NewString()))

	rec := httptest.NewRecorder()
	CartAddItem(stub, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestCartFetchRequiresShopper(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without shopper identity, got %d", rec.Code)
	}
}

type stubCartService struct {
	addItemFn func(ctx context.Context, shopperID uuid.UUID, input cartsvc.AddItemInput) (*models.Cart, error)
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), ShopperID: shopperID}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, shopperID uuid.UUID, input cartsvc.AddItemInput) (*models.Cart, error) {
	if s.addItemFn != nil {
		return s.addItemFn(ctx, shopperID, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubCartService) RemoveItem(ctx context.Context, shopperID, itemID uuid.UUID) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}
