// Package http exposes the point of sale over a JSON API and streams scans over a
// websocket.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Reports  *ReportHandler
	Scan     *ScanHandler
	// Health reports storage liveness; nil always answers ok.
	Health func(r *http.Request) error
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if h.Health != nil {
			if err := h.Health(r); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// the scan socket is long-lived and must not be timed out or compressed
		if h.Scan != nil {
			r.Get("/scan/ws", h.Scan.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.Products.List)
				r.Post("/", h.Products.Create)
				r.Get("/low-stock", h.Products.LowStock)
				r.Get("/barcode/{code}", h.Products.GetByBarcode)
				r.Get("/{id}", h.Products.Get)
				r.Put("/{id}", h.Products.Update)
				r.Delete("/{id}", h.Products.Delete)
			})
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})
			r.Post("/checkout", h.Checkout.Checkout)
			r.Post("/sell/deactivate", h.Checkout.Deactivate)
			r.Get("/reports", h.Reports.Report)
			r.Get("/transactions", h.Reports.Transactions)
			r.Get("/transactions/{id}", h.Reports.Transaction)
		})
	})

	return otelhttp.NewHandler(r, "mahali-pos")
}
