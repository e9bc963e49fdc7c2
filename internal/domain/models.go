// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the direction of a trade (BUY or SELL)
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// IsBuy returns true if this is a buy trade
func (s TradeSide) IsBuy() bool {
	return s == TradeSideBuy
}

// IsSell returns true if this is a sell trade
func (s TradeSide) IsSell() bool {
	return s == TradeSideSell
}

// IsValid reports whether s is BUY or SELL
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// ParseTradeSide accepts "buy"/"sell" in any case.
func ParseTradeSide(raw string) (TradeSide, error) {
	side := TradeSide(strings.ToUpper(strings.TrimSpace(raw)))
	if !side.IsValid() {
		return "", &TradeError{Kind: ErrInvalidSide, Detail: raw}
	}
	return side, nil
}

// NormalizeSymbol is the canonical form used for every symbol lookup and key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Stock is a tradable instrument with its current market price.
type Stock struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Trade is an executed order. Trades are immutable once recorded.
type Trade struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Side       TradeSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// SignedQuantity is +Quantity for buys and -Quantity for sells.
func (t Trade) SignedQuantity() int64 {
	if t.Side.IsSell() {
		return -t.Quantity
	}
	return t.Quantity
}

// Value is Quantity × Price.
func (t Trade) Value() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// TradeConfirmation is returned to the caller after a trade commits.
type TradeConfirmation struct {
	TradeID     string          `json:"trade_id"`
	UserID      string          `json:"user_id"`
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	StockName   string          `json:"stock_name"`
	Side        TradeSide       `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	ExecutedAt  time.Time       `json:"executed_at"`

	// Holding after the trade; zero quantity means the position was closed.
	HoldingQuantity    int64           `json:"holding_quantity"`
	HoldingAverageCost decimal.Decimal `json:"holding_average_cost"`
}

// PortfolioItemView is one holding valued at the current market price.
type PortfolioItemView struct {
	Symbol             string          `json:"symbol"`
	Name               string          `json:"name"`
	Quantity           int64           `json:"quantity"`
	AverageCost        decimal.Decimal `json:"average_cost"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	MarketValue        decimal.Decimal `json:"market_value"`
	CostBasis          decimal.Decimal `json:"cost_basis"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealized_gain_loss"`
}

// PortfolioView is the read-only valuation of a user's portfolio.
type PortfolioView struct {
	ID                   string              `json:"id"`
	UserID               string              `json:"user_id"`
	Name                 string              `json:"name"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Items                []PortfolioItemView `json:"items"`
	TotalValue           decimal.Decimal     `json:"total_value"`
	TotalCost            decimal.Decimal     `json:"total_cost"`
	TotalGainLoss        decimal.Decimal     `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal     `json:"total_gain_loss_percent"`
}
