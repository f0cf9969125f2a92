package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hvalleo/storefront-backend/api/responses"
	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/logger"
)

type contextKey string

const ctxShopperID contextKey = "shopper_id"

const shopperIDHeader = "X-Shopper-Id"

// ShopperIDFromContext returns the shopper id injected by ShopperContext.
func ShopperIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxShopperID).(string); ok {
		return v
	}
	return ""
}

// WithShopperID injects the shopper identifier into the context.
func WithShopperID(ctx context.Context, shopperID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxShopperID, shopperID)
}

// ShopperContext requires the gateway-provided shopper header and makes the
// identity available to handlers and log lines.
func ShopperContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(shopperIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper identity required"))
				return
			}
			shopperID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shopper id"))
				return
			}

			ctx := WithShopperID(r.Context(), shopperID.String())
			if logg != nil {
				ctx = logg.WithShopperID(ctx, shopperID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
