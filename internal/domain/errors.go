package domain

import (
	"errors"
	"fmt"
)

// Trade rejection kinds. Match with errors.Is.
var (
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidSide          = errors.New("invalid trade side")
	ErrInsufficientHoldings = errors.New("insufficient stock quantity to sell")
	ErrContentionTimeout    = errors.New("ledger busy, try again")
	ErrTradeExecutionFailed = errors.New("trade execution failed")
)

// ErrStockNotFound is returned by price lookups for symbols outside the universe.
var ErrStockNotFound = errors.New("stock not found")

// TradeError carries the rejection kind plus the context a client needs
// to understand it.
type TradeError struct {
	Kind      error
	Symbol    string
	Detail    string
	Requested int64
	Available int64
	Err       error // underlying cause, if any
}

func (e *TradeError) Error() string {
	switch e.Kind {
	case ErrInsufficientHoldings:
		return fmt.Sprintf("%s: %s requested %d, available %d", e.Kind, e.Symbol, e.Requested, e.Available)
	case ErrInvalidQuantity:
		return fmt.Sprintf("%s: %d (must be a positive whole number)", e.Kind, e.Requested)
	case ErrUnknownSymbol:
		return fmt.Sprintf("%s: %s", e.Kind, e.Symbol)
	case ErrInvalidSide:
		return fmt.Sprintf("%s: %q (must be BUY or SELL)", e.Kind, e.Detail)
	}

	msg := e.Kind.Error()
	if e.Symbol != "" {
		msg += " for " + e.Symbol
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *TradeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewExecutionFailed wraps an unexpected failure during trade execution.
// Errors that already carry a trade kind are returned unchanged.
func NewExecutionFailed(symbol string, err error) error {
	var tradeErr *TradeError
	if errors.As(err, &tradeErr) {
		return err
	}
	return &TradeError{Kind: ErrTradeExecutionFailed, Symbol: symbol, Err: err}
}

// IsRetryable reports whether the caller may resubmit the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContentionTimeout)
}

// ErrorCode is the stable machine-readable code for a trade error kind.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSymbol), errors.Is(err, ErrStockNotFound):
		return "unknown_symbol"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, ErrContentionTimeout):
		return "contention_timeout"
	}
	return "trade_execution_failed"
}
