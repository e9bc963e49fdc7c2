// Package universe manages the tradable stock list and its current prices.
package universe

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one recorded price for a stock.
type PricePoint struct {
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// PriceUpdate is the result of a price change.
type PriceUpdate struct {
	Symbol        string          `json:"symbol"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Warning       string          `json:"warning,omitempty"`
}
