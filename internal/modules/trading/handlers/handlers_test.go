package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/aristath/tradeledger/internal/modules/trading"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTradeService struct {
	confirmation *domain.TradeConfirmation
	trades       []domain.Trade
	err          error

	lastRequest trading.PlaceTradeRequest
	lastSymbol  string
	lastLimit   int
}

func (m *mockTradeService) PlaceTrade(ctx context.Context, req trading.PlaceTradeRequest) (*domain.TradeConfirmation, error) {
	m.lastRequest = req
	return m.confirmation, m.err
}

func (m *mockTradeService) GetUserTrades(ctx context.Context, userID, symbol string, limit int) ([]domain.Trade, error) {
	m.lastSymbol = symbol
	m.lastLimit = limit
	return m.trades, m.err
}

func do(svc TradeService, method, target, userID string, body interface{}) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(identity.Middleware)
	NewTradingHandlers(svc, zerolog.Nop()).RegisterRoutes(r)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlePlaceTrade(t *testing.T) {
	svc := &mockTradeService{confirmation: &domain.TradeConfirmation{
		TradeID:         "t1",
		UserID:          "alice",
		Symbol:          "AAPL",
		Side:            domain.TradeSideBuy,
		Quantity:        10,
		Price:           decimal.NewFromInt(170),
		Total:           decimal.NewFromInt(1700),
		ExecutedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		HoldingQuantity: 10,
	}}

	rec := do(svc, http.MethodPost, "/trades", "alice", PlaceTradeRequest{Symbol: "aapl", Side: "buy", Quantity: 10})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, trading.PlaceTradeRequest{UserID: "alice", Symbol: "aapl", Side: "buy", Quantity: 10}, svc.lastRequest)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "t1", body["trade_id"])
	assert.Equal(t, "1700", body["total"])
}

func TestHandlePlaceTrade_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown symbol", &domain.TradeError{Kind: domain.ErrUnknownSymbol, Symbol: "NOPE"}, http.StatusNotFound, "unknown_symbol"},
		{"invalid quantity", &domain.TradeError{Kind: domain.ErrInvalidQuantity}, http.StatusBadRequest, "invalid_quantity"},
		{"invalid side", &domain.TradeError{Kind: domain.ErrInvalidSide, Detail: "HOLD"}, http.StatusBadRequest, "invalid_side"},
		{
			"insufficient holdings",
			&domain.TradeError{Kind: domain.ErrInsufficientHoldings, Symbol: "AAPL", Requested: 5, Available: 2},
			http.StatusBadRequest, "insufficient_holdings",
		},
		{
			"contention",
			&domain.TradeError{Kind: domain.ErrContentionTimeout, Err: errors.New("locked")},
			http.StatusServiceUnavailable, "contention_timeout",
		},
		{"execution failed", domain.NewExecutionFailed("AAPL", errors.New("disk I/O error")), http.StatusInternalServerError, "trade_execution_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(&mockTradeService{err: tt.err}, http.MethodPost, "/trades", "alice",
				PlaceTradeRequest{Symbol: "AAPL", Side: "BUY", Quantity: 1})

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["code"])

			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
			if tt.wantCode == "insufficient_holdings" {
				assert.Equal(t, float64(5), body["requested"])
				assert.Equal(t, float64(2), body["available"])
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "disk")
			}
		})
	}
}

func TestHandlePlaceTrade_BadRequests(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		rec := do(&mockTradeService{}, http.MethodPost, "/trades", "", PlaceTradeRequest{Symbol: "AAPL", Side: "BUY", Quantity: 1})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(&mockTradeService{}, http.MethodPost, "/trades", "alice", "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetTrades(t *testing.T) {
	svc := &mockTradeService{trades: []domain.Trade{{ID: "t2"}, {ID: "t1"}}}

	rec := do(svc, http.MethodGet, "/trades?symbol=AAPL&limit=5", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", svc.lastSymbol)
	assert.Equal(t, 5, svc.lastLimit)

	var body []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "t2", body[0]["id"])

	rec = do(svc, http.MethodGet, "/trades", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultTradeLimit, svc.lastLimit)

	rec = do(svc, http.MethodGet, "/trades?limit=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
