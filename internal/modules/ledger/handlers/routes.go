package handlers

import (
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Use(identity.Require)
		r.Get("/reconcile", h.HandleReconcile)
	})
}
