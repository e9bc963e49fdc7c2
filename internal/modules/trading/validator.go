package trading

import (
	"github.com/aristath/tradeledger/internal/domain"
)

// Candidate is a trade that has not been accepted yet.
type Candidate struct {
	Side     domain.TradeSide
	Quantity int64
	Stock    *domain.Stock // nil when the symbol did not resolve
	Symbol   string
}

// Validator decides whether a candidate trade may execute against the
// holdings snapshot read inside the committing transaction. It is pure.
type Validator struct{}

// NewValidator creates a trade validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil to accept the candidate, or a *domain.TradeError
// naming the rejection. Buys have no affordability check.
func (v *Validator) Validate(c Candidate, heldQuantity int64) error {
	symbol := c.Symbol
	if c.Stock != nil {
		symbol = c.Stock.Symbol
	}

	if c.Quantity <= 0 {
		return &domain.TradeError{Kind: domain.ErrInvalidQuantity, Symbol: symbol, Requested: c.Quantity}
	}
	if c.Stock == nil {
		return &domain.TradeError{Kind: domain.ErrUnknownSymbol, Symbol: symbol}
	}

	switch c.Side {
	case domain.TradeSideBuy:
		return nil
	case domain.TradeSideSell:
		if heldQuantity < c.Quantity {
			return &domain.TradeError{
				Kind:      domain.ErrInsufficientHoldings,
				Symbol:    symbol,
				Requested: c.Quantity,
				Available: heldQuantity,
			}
		}
		return nil
	}
	return &domain.TradeError{Kind: domain.ErrInvalidSide, Symbol: symbol, Detail: string(c.Side)}
}
