// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aristath/tradeledger/internal/identity"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// Auditor checks holdings against the trade log
type Auditor interface {
	Reconcile(ctx context.Context, userID string) (*ledger.ReconciliationReport, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	auditor Auditor
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(auditor Auditor, log zerolog.Logger) *Handler {
	return &Handler{
		auditor: auditor,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleReconcile handles GET /api/ledger/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserIDFromContext(r.Context())

	report, err := h.auditor.Reconcile(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to reconcile ledger")
		h.writeError(w, http.StatusInternalServerError, "failed to reconcile ledger")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
