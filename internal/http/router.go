// Package http exposes the storefront REST API.
package http

import (
	"net/http"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Auth     AuthService
	Catalog  CatalogService
	Carts    CartService
	Orders   OrderService
	Webhooks WebhookParser
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	HTTP           config.HTTPConfig
	Cookie         config.CookieConfig
	PublishableKey string
	ServiceName    string
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.HTTP.RequestTimeout

	authHandler := NewAuthHandler(d.Auth, d.Cookie, timeout)
	productHandler := NewProductHandler(d.Catalog, timeout)
	cartHandler := NewCartHandler(d.Carts, timeout)
	ordersHandler := NewOrdersHandler(d.Orders, timeout)
	paymentHandler := NewPaymentHandler(d.Orders, d.Webhooks, d.PublishableKey, timeout)

	requireAuth := RequireAuth(d.Auth, d.Cookie.Name)
	authLimiter := NewClientRateLimiter(d.HTTP.AuthRateLimit, d.HTTP.AuthRateBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(Instrument(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.HTTP.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(d.HTTP.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/authentication", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
	})

	r.Get("/products", productHandler.ListProducts)
	r.Get("/products/{id}", productHandler.GetProduct)

	// Stripe authenticates with its signature header, not a user token.
	r.Post("/payment/webhook", paymentHandler.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/cart", cartHandler.GetCart)
		r.Post("/cart", cartHandler.AddItem)
		r.Put("/cart/update/{itemId}", cartHandler.UpdateQuantity)
		r.Delete("/products/remove/{id}", cartHandler.RemoveItem)

		r.Post("/orders", ordersHandler.PlaceOrder)
		r.Get("/orders/{id}", ordersHandler.GetOrder)
		r.Post("/orders/{id}/pay", ordersHandler.ConfirmPayment)
		r.Get("/productsorder", ordersHandler.ListMyOrders)

		r.Post("/payment/process", paymentHandler.ProcessPayment)
		r.Post("/reviews", productHandler.CreateReview)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/products", productHandler.CreateProduct)
			r.Put("/products/{id}", productHandler.UpdateProduct)
			r.Delete("/products/{id}", productHandler.DeleteProduct)
			r.Get("/orders", ordersHandler.ListOrders)
			r.Put("/orders/{id}/status", ordersHandler.UpdateStatus)
		})
	})

	name := d.ServiceName
	if name == "" {
		name = "storefront"
	}
	return otelhttp.NewHandler(r, name)
}
