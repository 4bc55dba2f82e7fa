package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Products ProductStore
	Carts    CartService
	Checkout OrderPlacer
	Orders   OrderStore
	// Events serves the websocket event stream.
	Events http.Handler
	Auth   *Authenticator
	// Health reports whether storage is reachable.
	Health func(ctx context.Context) error

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	ServiceName        string
	Log                *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.MaxRequestBodySize <= 0 {
		d.MaxRequestBodySize = 1 << 20 // 1MB
	}

	products := NewProductHandler(d.Products, d.RequestTimeout, d.Log)
	carts := NewCartHandler(d.Carts, d.Products, d.RequestTimeout, d.Log)
	placer := NewCheckoutHandler(d.Checkout, d.RequestTimeout, d.Log)
	orders := NewOrdersHandler(d.Orders, d.RequestTimeout, d.Log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.Health != nil {
			if err := d.Health(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// long lived, kept out of the timeout and compression middleware
		if d.Events != nil {
			r.With(d.Auth.StreamMiddleware).Handle("/events", d.Events)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.RequestTimeout))
			r.Use(middleware.Compress(5))
			r.Use(middleware.RequestSize(d.MaxRequestBodySize))

			r.Get("/products", products.List)
			r.Get("/products/{id}", products.Get)

			r.Group(func(r chi.Router) {
				r.Use(d.Auth.Middleware)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", carts.GetCart)
					r.Post("/", carts.AddItem)
					r.Delete("/", carts.ClearCart)
					r.Put("/items/{product_id}", carts.UpdateQuantity)
					r.Delete("/items/{product_id}", carts.RemoveItem)
				})
				r.Get("/checkout", placer.Defaults)
				r.Post("/checkout", placer.PlaceOrder)

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", orders.ListOrders)
					r.Get("/{order_id}", orders.GetOrder)
					r.Patch("/{order_id}/status", orders.UpdateStatus)
				})

				r.Route("/seller", func(r chi.Router) {
					r.Use(RequireRole(RoleSeller))

					r.Get("/products", products.SellerList)
					r.Post("/products", products.SellerUpsert)
					r.Put("/products", products.SellerReplace)
					r.Delete("/products/{id}", products.SellerDelete)
					r.Post("/products/{id}/toggle-posted", products.SellerTogglePosted)

					r.Get("/orders", orders.SellerListOrders)
					r.Patch("/orders/{order_id}/status", orders.SellerUpdateStatus)
				})
			})
		})
	})

	name := d.ServiceName
	if name == "" {
		name = "milkshop"
	}
	return otelhttp.NewHandler(r, name)
}
