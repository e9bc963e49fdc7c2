// Package handlers provides HTTP handlers for the stock universe.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/modules/universe"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StockService is the subset of universe.StockService the handlers use
type StockService interface {
	List(ctx context.Context) ([]domain.Stock, error)
	Get(ctx context.Context, symbol string) (*domain.Stock, error)
	UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) (*universe.PriceUpdate, error)
	GetPriceStats(ctx context.Context, symbol string, samples, window int) (*universe.PriceStats, error)
}

// UniverseHandlers contains HTTP handlers for stock API
type UniverseHandlers struct {
	service StockService
	log     zerolog.Logger
}

// NewUniverseHandlers creates a new universe handlers instance
func NewUniverseHandlers(service StockService, log zerolog.Logger) *UniverseHandlers {
	return &UniverseHandlers{
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// HandleGetStocks handles GET /api/stocks
func (h *UniverseHandlers) HandleGetStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stocks")
		h.writeError(w, http.StatusInternalServerError, "failed to list stocks")
		return
	}
	h.writeJSON(w, http.StatusOK, stocks)
}

// HandleGetStock handles GET /api/stocks/{symbol}
func (h *UniverseHandlers) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	stock, err := h.service.Get(r.Context(), symbol)
	if err != nil {
		h.writeServiceError(w, symbol, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stock)
}

// UpdatePriceRequest is the body of PUT /api/stocks/{symbol}/price
type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

// HandleUpdatePrice handles PUT /api/stocks/{symbol}/price
func (h *UniverseHandlers) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price == nil {
		h.writeError(w, http.StatusBadRequest, "price is required")
		return
	}

	update, err := h.service.UpdatePrice(r.Context(), symbol, *req.Price)
	if err != nil {
		h.writeServiceError(w, symbol, err)
		return
	}
	h.writeJSON(w, http.StatusOK, update)
}

// HandleGetStats handles GET /api/stocks/{symbol}/stats?samples=&window=
func (h *UniverseHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	samples := queryInt(r, "samples", 250)
	window := queryInt(r, "window", universe.DefaultStatsWindow)

	stats, err := h.service.GetPriceStats(r.Context(), symbol, samples, window)
	if err != nil {
		h.writeServiceError(w, symbol, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func (h *UniverseHandlers) writeServiceError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, domain.ErrStockNotFound):
		h.writeError(w, http.StatusNotFound, "stock not found: "+domain.NormalizeSymbol(symbol))
	case errors.Is(err, universe.ErrInvalidPrice):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case database.IsBusyError(err):
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Stock store busy")
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusServiceUnavailable, "stock store busy, retry later")
	default:
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Stock request failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *UniverseHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *UniverseHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
