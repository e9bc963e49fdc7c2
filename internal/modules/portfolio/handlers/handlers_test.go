package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	view   *domain.PortfolioView
	err    error
	userID string
}

func (m *mockReader) GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	m.userID = userID
	return m.view, m.err
}

func serve(reader PortfolioReader, userID string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(identity.Middleware)
	NewHandler(reader, zerolog.Nop()).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/portfolio", nil)
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetPortfolio(t *testing.T) {
	reader := &mockReader{view: &domain.PortfolioView{
		ID:     "p1",
		UserID: "alice",
		Items: []domain.PortfolioItemView{
			{Symbol: "AAPL", Quantity: 10, AverageCost: decimal.NewFromInt(170)},
		},
		TotalValue: decimal.NewFromInt(1700),
	}}

	rec := serve(reader, "alice")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", reader.userID)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "p1", body["id"])
	assert.Equal(t, "1700", body["total_value"])
}

func TestHandleGetPortfolio_Errors(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		err        error
		wantStatus int
		retryAfter string
	}{
		{"missing user", "", nil, http.StatusUnauthorized, ""},
		{
			"contention", "alice",
			&domain.TradeError{Kind: domain.ErrContentionTimeout, Err: errors.New("locked")},
			http.StatusServiceUnavailable, "1",
		},
		{"failure", "alice", errors.New("disk"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&mockReader{err: tt.err}, tt.userID)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}
