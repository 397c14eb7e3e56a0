package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Products *ProductHandler
	// Checks are probed by /health.
	Checks map[string]Pinger
}

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
	Log            zerolog.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestIDHeader)
	r.Use(AccessLog(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(LimitBody(maxRequestBodySize))

	r.Get("/health", healthHandler(h.Checks))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.Get)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
				r.Put("/currency", h.Cart.SetCurrency)
			})

			r.Post("/checkout", h.Checkout.Checkout)
			r.Get("/checkout/payment", h.Checkout.PaymentPage)
			r.Post("/payment/callback", h.Checkout.PaymentCallback)

			r.Get("/orders", h.Orders.ListOrders)
			r.Get("/orders/{order_id}", h.Orders.GetOrder)
			r.Get("/payments", h.Orders.ListPayments)
		})
	})

	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		respondJSON(w, status, result)
	}
}
