package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/responses"
	"github.com/hvalleo/storefront-backend/api/validators"
	notificationssvc "github.com/hvalleo/storefront-backend/internal/notifications"
	"github.com/hvalleo/storefront-backend/pkg/db/models"
	"github.com/hvalleo/storefront-backend/pkg/enums"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/types"
)

// NotificationList returns the shopper's notifications, newest first.
// ?unread_only=true filters to unread ones.
func NotificationList(svc notificationssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
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

		result, err := svc.List(r.Context(), notificationssvc.ListParams{
			ShopperID:  shopperID,
			Limit:      params.Limit,
			Cursor:     params.Cursor,
			UnreadOnly: r.URL.Query().Get("unread_only") == "true",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]notificationResponse, len(result.Items))
		for i := range result.Items {
			items[i] = newNotificationResponse(&result.Items[i])
		}
		responses.WriteSuccess(w, listEnvelope[notificationResponse]{Items: items, Cursor: result.Cursor})
	}
}

// NotificationMarkRead stamps a single notification as read.
func NotificationMarkRead(svc notificationssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := pathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), shopperID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

// NotificationMarkAllRead stamps every unread notification as read and
// reports how many were updated.
func NotificationMarkAllRead(svc notificationssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.MarkAllRead(r.Context(), shopperID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"updated": updated})
	}
}

type notificationResponse struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Subject   string                 `json:"subject"`
	Body      string                 `json:"body"`
	Data      types.JSONMap          `json:"data,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func newNotificationResponse(record *models.Notification) notificationResponse {
	return notificationResponse{
		ID:        record.ID,
		Type:      record.Type,
		Subject:   record.Subject,
		Body:      record.Body,
		Data:      record.Data,
		ReadAt:    record.ReadAt,
		CreatedAt: record.CreatedAt,
	}
}
