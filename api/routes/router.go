package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hvalleo/storefront-backend/api/controllers"
	"github.com/hvalleo/storefront-backend/api/middleware"
	"github.com/hvalleo/storefront-backend/internal/cart"
	"github.com/hvalleo/storefront-backend/internal/catalog"
	"github.com/hvalleo/storefront-backend/internal/inventory"
	"github.com/hvalleo/storefront-backend/internal/notifications"
	"github.com/hvalleo/storefront-backend/internal/orders"
	"github.com/hvalleo/storefront-backend/internal/reviews"
	"github.com/hvalleo/storefront-backend/pkg/config"
	"github.com/hvalleo/storefront-backend/pkg/logger"
	"github.com/hvalleo/storefront-backend/pkg/redis"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Catalog       catalog.Service
	Inventory     inventory.Service
	Cart          cart.Service
	Orders        orders.Service
	Lifecycle     orders.LifecycleService
	Reviews       reviews.Service
	Notifications notifications.Service
}

// NewRouter wires middleware and routes. Catalog reads are public; every
// shopper-scoped route requires the gateway identity header.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	healthDeps map[string]controllers.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svcs.Catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(svcs.Catalog, logg))
			r.Get("/{productId}/reviews", controllers.ReviewList(svcs.Reviews, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.ShopperContext(logg))
				r.Use(middleware.Idempotency(redisClient, logg))
				r.Post("/{productId}/reviews", controllers.ReviewCreate(svcs.Reviews, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ShopperContext(logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Cart, logg))
				r.Delete("/", controllers.CartClear(svcs.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
				r.Put("/items/{itemId}", controllers.CartUpdateItem(svcs.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
				r.Get("/", controllers.OrderList(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
				r.Put("/{orderId}/status", controllers.OrderSetStatus(svcs.Lifecycle, logg))
				r.Put("/{orderId}/payment-status", controllers.OrderSetPaymentStatus(svcs.Lifecycle, logg))
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Put("/{reviewId}", controllers.ReviewUpdate(svcs.Reviews, logg))
				r.Delete("/{reviewId}", controllers.ReviewDelete(svcs.Reviews, logg))
			})

			r.Post("/variants/{variantId}/restock", controllers.VariantRestock(svcs.Inventory, svcs.Catalog, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationList(svcs.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.NotificationMarkRead(svcs.Notifications, logg))
				r.Post("/read-all", controllers.NotificationMarkAllRead(svcs.Notifications, logg))
			})
		})
	})

	return r
}
