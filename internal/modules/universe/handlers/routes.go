package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stock routes
func (h *UniverseHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.HandleGetStocks)
		r.Get("/{symbol}", h.HandleGetStock)
		r.Put("/{symbol}/price", h.HandleUpdatePrice)
		r.Get("/{symbol}/stats", h.HandleGetStats)
	})
}
