package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/responses"
	"github.com/hvalleo/storefront-backend/api/validators"
	reviewssvc "github.com/hvalleo/storefront-backend/internal/reviews"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
)

// ReviewCreate posts a new review for a product. One review per shopper per
// product; repeats surface a conflict.
func ReviewCreate(svc reviewssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.CreateReview(r.Context(), shopperID, productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReviewResponse(review))
	}
}

// ReviewUpdate rewrites the shopper's own review.
func ReviewUpdate(svc reviewssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviewID, err := pathUUID(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.UpdateReview(r.Context(), shopperID, reviewID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReviewResponse(review))
	}
}

// ReviewDelete removes the shopper's own review.
func ReviewDelete(svc reviewssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviewID, err := pathUUID(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteReview(r.Context(), shopperID, reviewID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ReviewList returns a product's reviews, newest first.
func ReviewList(svc reviewssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, cursor, err := svc.ListReviews(r.Context(), productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]reviewResponse, len(rows))
		for i := range rows {
			items[i] = newReviewResponse(&rows[i])
		}
		responses.WriteSuccess(w, listEnvelope[reviewResponse]{Items: items, Cursor: cursor})
	}
}

type reviewRequest struct {
	Rating int     `json:"rating" validate:"required,min=1,max=5"`
	Title  *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Body   *string `json:"body,omitempty" validate:"omitempty,max=5000"`
}

func (p reviewRequest) toInput() reviewssvc.ReviewInput {
	return reviewssvc.ReviewInput{
		Rating: p.Rating,
		Title:  p.Title,
		Body:   p.Body,
	}
}

type reviewResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	ShopperID uuid.UUID `json:"shopper_id"`
	Rating    int       `json:"rating"`
	Title     *string   `json:"title,omitempty"`
	Body      *string   `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newReviewResponse(record *models.Review) reviewResponse {
	return reviewResponse{
		ID:        record.ID,
		ProductID: record.ProductID,
		ShopperID: record.ShopperID,
		Rating:    record.Rating,
		Title:     record.Title,
		Body:      record.Body,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
