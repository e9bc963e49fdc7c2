package handlers

import (
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/", h.HandlePlaceTrade)
		r.Get("/", h.HandleGetTrades)
	})
}
