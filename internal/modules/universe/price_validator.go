package universe

import (
	"errors"
	"fmt"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice is returned for prices that can never be correct.
	ErrInvalidPrice = errors.New("invalid price")

	absolutePriceMax = decimal.NewFromInt(1_000_000)
	maxSpikeRatio    = decimal.NewFromInt(10)           // >10x previous is suspicious
	minCrashRatio    = decimal.RequireFromString("0.1") // <0.1x previous is suspicious
)

// ValidatePrice rejects non-positive or absurd prices and returns a
// warning for moves large enough to deserve a second look.
func ValidatePrice(price, previous decimal.Decimal) (warning string, err error) {
	if !price.IsPositive() {
		return "", fmt.Errorf("%w: %s must be positive", ErrInvalidPrice, price)
	}
	if price.GreaterThan(absolutePriceMax) {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrInvalidPrice, price, absolutePriceMax)
	}
	if !price.Equal(price.Truncate(4)) {
		return "", fmt.Errorf("%w: %s has more than 4 decimal places", ErrInvalidPrice, price)
	}

	if previous.IsPositive() {
		ratio := price.Div(previous)
		switch {
		case ratio.GreaterThan(maxSpikeRatio):
			warning = fmt.Sprintf("price jumped from %s to %s", previous, price)
		case ratio.LessThan(minCrashRatio):
			warning = fmt.Sprintf("price dropped from %s to %s", previous, price)
		}
	}
	return warning, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrStockNotFound)
}
