package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig, logger *zap.Logger, menu *MenuHandler, carts *CartHandler, orders *OrdersHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Event streams outlive any request timeout.
		r.Get("/orders/{id}/events", orders.StreamProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))

			r.Get("/menu", menu.GetMenu)
			r.Get("/menu/{id}", menu.GetProduct)
			r.Get("/orders/{id}/progress", orders.GetProgress)

			r.Route("/cart", func(r chi.Router) {
				r.Use(SessionMiddleware)
				r.Get("/", carts.GetCart)
				r.Delete("/", carts.ClearCart)
				r.Post("/items", carts.AddItem)
				r.Put("/items", carts.UpdateQuantity)
				r.Delete("/items", carts.RemoveItem)
			})
		})
	})

	return r
}
