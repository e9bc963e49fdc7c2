// Package handlers provides HTTP handlers for trade execution.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/aristath/tradeledger/internal/modules/trading"
	"github.com/rs/zerolog"
)

// DefaultTradeLimit caps GET /api/trades when no limit is given.
const DefaultTradeLimit = 100

// TradeService is the subset of trading.TradingService the handlers use
type TradeService interface {
	PlaceTrade(ctx context.Context, req trading.PlaceTradeRequest) (*domain.TradeConfirmation, error)
	GetUserTrades(ctx context.Context, userID, symbol string, limit int) ([]domain.Trade, error)
}

// TradingHandlers contains HTTP handlers for trading API
type TradingHandlers struct {
	service TradeService
	log     zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(service TradeService, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// PlaceTradeRequest is the body of POST /api/trades
type PlaceTradeRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
}

// HandlePlaceTrade handles POST /api/trades
func (h *TradingHandlers) HandlePlaceTrade(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserIDFromContext(r.Context())

	var req PlaceTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "invalid_request"})
		return
	}

	confirmation, err := h.service.PlaceTrade(r.Context(), trading.PlaceTradeRequest{
		UserID:   userID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, confirmation)
}

// HandleGetTrades handles GET /api/trades?symbol=&limit=
func (h *TradingHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserIDFromContext(r.Context())

	limit := DefaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer", Code: "invalid_request"})
			return
		}
		limit = parsed
	}

	trades, err := h.service.GetUserTrades(r.Context(), userID, r.URL.Query().Get("symbol"), limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get trades")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get trades"})
		return
	}

	h.writeJSON(w, http.StatusOK, trades)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

// statusFor maps a trade error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrContentionTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *TradingHandlers) writeTradeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: domain.ErrorCode(err)}

	var tradeErr *domain.TradeError
	if errors.As(err, &tradeErr) {
		resp.Symbol = tradeErr.Symbol
		if errors.Is(err, domain.ErrInsufficientHoldings) {
			resp.Requested = &tradeErr.Requested
			resp.Available = &tradeErr.Available
		}
	}

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusInternalServerError:
		h.log.Error().Err(err).Msg("Trade execution failed")
		resp.Error = domain.ErrTradeExecutionFailed.Error()
	}

	h.writeJSON(w, status, resp)
}

func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
