package handlers

import (
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Use(identity.Require)
		r.Get("/", h.HandleGetPortfolio)
	})
}
