package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeError_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("place trade: %w", &TradeError{Kind: ErrTradeExecutionFailed, Symbol: "AAPL", Err: cause})

	assert.ErrorIs(t, err, ErrTradeExecutionFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInsufficientHoldings)

	var tradeErr *TradeError
	require.ErrorAs(t, err, &tradeErr)
	assert.Equal(t, "AAPL", tradeErr.Symbol)
}

func TestTradeError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *TradeError
		want string
	}{
		{"insufficient", &TradeError{Kind: ErrInsufficientHoldings, Symbol: "MSFT", Requested: 6, Available: 5}, "insufficient stock quantity to sell: MSFT requested 6, available 5"},
		{"quantity", &TradeError{Kind: ErrInvalidQuantity, Requested: -3}, "invalid quantity: -3 (must be a positive whole number)"},
		{"unknown", &TradeError{Kind: ErrUnknownSymbol, Symbol: "ZZZZ"}, "unknown symbol: ZZZZ"},
		{"side", &TradeError{Kind: ErrInvalidSide, Detail: "HOLD"}, `invalid trade side: "HOLD" (must be BUY or SELL)`},
		{"failed", &TradeError{Kind: ErrTradeExecutionFailed, Symbol: "AAPL", Err: errors.New("io")}, "trade execution failed for AAPL: io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewExecutionFailed(t *testing.T) {
	kinded := &TradeError{Kind: ErrContentionTimeout}
	assert.Same(t, kinded, NewExecutionFailed("AAPL", kinded))

	wrapped := NewExecutionFailed("AAPL", context.Canceled)
	assert.ErrorIs(t, wrapped, ErrTradeExecutionFailed)
	assert.ErrorIs(t, wrapped, context.Canceled)
}

func TestIsRetryableAndErrorCode(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
		code      string
	}{
		{&TradeError{Kind: ErrContentionTimeout}, true, "contention_timeout"},
		{&TradeError{Kind: ErrUnknownSymbol}, false, "unknown_symbol"},
		{ErrStockNotFound, false, "unknown_symbol"},
		{&TradeError{Kind: ErrInvalidQuantity}, false, "invalid_quantity"},
		{&TradeError{Kind: ErrInvalidSide}, false, "invalid_side"},
		{&TradeError{Kind: ErrInsufficientHoldings}, false, "insufficient_holdings"},
		{errors.New("anything else"), false, "trade_execution_failed"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, IsRetryable(tt.err), "%v", tt.err)
		assert.Equal(t, tt.code, ErrorCode(tt.err), "%v", tt.err)
	}
}
