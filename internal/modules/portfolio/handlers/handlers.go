// Package handlers provides HTTP handlers for portfolio views.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/rs/zerolog"
)

// PortfolioReader returns a user's valued portfolio
type PortfolioReader interface {
	GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	reader PortfolioReader
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(reader PortfolioReader, log zerolog.Logger) *Handler {
	return &Handler{
		reader: reader,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserIDFromContext(r.Context())

	view, err := h.reader.GetPortfolio(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrContentionTimeout) {
			w.Header().Set("Retry-After", "1")
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "ledger is busy, retry shortly",
				"code":  domain.ErrorCode(err),
			})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get portfolio")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get portfolio"})
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
