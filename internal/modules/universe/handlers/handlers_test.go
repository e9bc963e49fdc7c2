package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/modules/universe"
	"github.com/aristath/tradeledger/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStockService struct {
	stocks      map[string]domain.Stock
	updateErr   error
	statsWindow int
}

func (m *mockStockService) List(ctx context.Context) ([]domain.Stock, error) {
	out := make([]domain.Stock, 0, len(m.stocks))
	for _, s := range m.stocks {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStockService) Get(ctx context.Context, symbol string) (*domain.Stock, error) {
	s, ok := m.stocks[domain.NormalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStockNotFound, symbol)
	}
	return &s, nil
}

func (m *mockStockService) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) (*universe.PriceUpdate, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	s, err := m.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &universe.PriceUpdate{Symbol: s.Symbol, PreviousPrice: s.CurrentPrice, NewPrice: price}, nil
}

func (m *mockStockService) GetPriceStats(ctx context.Context, symbol string, samples, window int) (*universe.PriceStats, error) {
	m.statsWindow = window
	s, err := m.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &universe.PriceStats{Symbol: s.Symbol, PriceStats: formulas.Summarize([]float64{1, 2, 3}, window)}, nil
}

func newTestRouter(svc StockService) http.Handler {
	r := chi.NewRouter()
	NewUniverseHandlers(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func newMockService() *mockStockService {
	return &mockStockService{stocks: map[string]domain.Stock{
		"AAPL": {Symbol: "AAPL", Name: "Apple Inc.", CurrentPrice: decimal.NewFromInt(170)},
	}}
}

func TestHandleGetStock(t *testing.T) {
	router := newTestRouter(newMockService())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/aapl", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stock domain.Stock
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stock))
	assert.Equal(t, "Apple Inc.", stock.Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/ZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ZZZZ")
}

func TestHandleGetStocks(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(newMockService()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stocks []domain.Stock
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stocks))
	assert.Len(t, stocks, 1)
}

func TestHandleUpdatePrice(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		body     string
		svcErr   error
		wantCode int
	}{
		{"numeric price", "AAPL", `{"price": 175.5}`, nil, http.StatusOK},
		{"string price", "AAPL", `{"price": "175.50"}`, nil, http.StatusOK},
		{"missing price", "AAPL", `{}`, nil, http.StatusBadRequest},
		{"malformed body", "AAPL", `{"price":`, nil, http.StatusBadRequest},
		{"unknown stock", "ZZZZ", `{"price": 1}`, nil, http.StatusNotFound},
		{"invalid price", "AAPL", `{"price": -1}`, fmt.Errorf("%w: negative", universe.ErrInvalidPrice), http.StatusBadRequest},
		{"store failure", "AAPL", `{"price": 1}`, errors.New("disk"), http.StatusInternalServerError},
		{"store busy", "AAPL", `{"price": 1}`, errors.New("database is locked (5) (SQLITE_BUSY)"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService()
			svc.updateErr = tt.svcErr
			req := httptest.NewRequest(http.MethodPut, "/stocks/"+tt.symbol+"/price", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			newTestRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestHandleGetStats(t *testing.T) {
	svc := newMockService()
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/AAPL/stats?window=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.statsWindow)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, float64(3), body["samples"])
}
