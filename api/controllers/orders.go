package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/responses"
	"github.com/hvalleo/storefront-backend/api/validators"
	orderssvc "github.com/hvalleo/storefront-backend/internal/orders"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// OrderCreate assembles an order from the submitted items and addresses.
func OrderCreate(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), shopperID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderList returns the shopper's orders, newest first.
func OrderList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, cursor, err := svc.ListOrders(r.Context(), shopperID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(rows))
		for i := range rows {
			items[i] = newOrderResponse(&rows[i])
		}
		responses.WriteSuccess(w, listEnvelope[orderResponse]{Items: items, Cursor: cursor})
	}
}

// OrderDetail returns a single order owned by the shopper.
func OrderDetail(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), shopperID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderSetStatus transitions the fulfillment status.
func OrderSetStatus(svc orderssvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lifecycle service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.SetStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderSetPaymentStatus transitions the payment status.
func OrderSetPaymentStatus(svc orderssvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lifecycle service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(payload.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		order, err := svc.SetPaymentStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type orderCreateRequest struct {
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address      `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address     `json:"billing_address,omitempty"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	SubtotalCents   int64              `json:"subtotal_cents" validate:"min=0"`
	TaxCents        int64              `json:"tax_cents" validate:"min=0"`
	ShippingCents   int64              `json:"shipping_cents" validate:"min=0"`
	DiscountCents   int64              `json:"discount_cents" validate:"min=0"`
	Notes           *string            `json:"notes,omitempty"`
	ClearCart       bool               `json:"clear_cart"`
}

type orderItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

func (p orderCreateRequest) toInput() (orderssvc.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return orderssvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	input := orderssvc.CreateOrderInput{
		Items:           make([]orderssvc.OrderItemInput, 0, len(p.Items)),
		ShippingAddress: p.ShippingAddress,
		BillingAddress:  p.BillingAddress,
		PaymentMethod:   method,
		SubtotalCents:   p.SubtotalCents,
		TaxCents:        p.TaxCents,
		ShippingCents:   p.ShippingCents,
		DiscountCents:   p.DiscountCents,
		Notes:           p.Notes,
		ClearCart:       p.ClearCart,
	}
	for _, item := range p.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return orderssvc.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid product_id")
		}
		entry := orderssvc.OrderItemInput{ProductID: productID, Quantity: item.Quantity}
		if item.VariantID != nil {
			variantID, err := uuid.Parse(*item.VariantID)
			if err != nil {
				return orderssvc.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid variant_id")
			}
			entry.VariantID = &variantID
		}
		input.Items = append(input.Items, entry)
	}
	return input, nil
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	ShopperID       uuid.UUID           `json:"shopper_id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	TaxCents        int64               `json:"tax_cents"`
	ShippingCents   int64               `json:"shipping_cents"`
	DiscountCents   int64               `json:"discount_cents"`
	TotalCents      int64               `json:"total_cents"`
	Total           string              `json:"total"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  types.Address       `json:"billing_address"`
	Notes           *string             `json:"notes,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	IsDelivered     bool                `json:"is_delivered"`
	Items           []orderItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductTitle   string     `json:"product_title"`
	VariantName    *string    `json:"variant_name,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	LineTotalCents int64      `json:"line_total_cents"`
}

func newOrderResponse(record *models.Order) orderResponse {
	resp := orderResponse{
		ID:              record.ID,
		OrderNumber:     record.OrderNumber,
		ShopperID:       record.ShopperID,
		Status:          record.Status,
		PaymentStatus:   record.PaymentStatus,
		PaymentMethod:   record.PaymentMethod,
		Currency:        record.Currency,
		SubtotalCents:   record.SubtotalCents,
		TaxCents:        record.TaxCents,
		ShippingCents:   record.ShippingCents,
		DiscountCents:   record.DiscountCents,
		TotalCents:      record.TotalCents,
		Total:           types.FormatCents(record.TotalCents),
		ShippingAddress: record.ShippingAddress,
		BillingAddress:  record.BillingAddress,
		Notes:           record.Notes,
		TrackingNumber:  record.TrackingNumber,
		ShippedAt:       record.ShippedAt,
		DeliveredAt:     record.DeliveredAt,
		IsDelivered:     record.IsDelivered,
		CreatedAt:       record.CreatedAt,
	}
	for i := range record.Items {
		item := &record.Items[i]
		resp.Items = append(resp.Items, orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductTitle:   item.ProductTitle,
			VariantName:    item.VariantName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return resp
}
