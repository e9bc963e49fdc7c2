// Package formulas holds the numeric helpers behind price statistics.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateSMA calculates the Simple Moving Average over the last length closes.
// Returns nil if there is not enough data.
func CalculateSMA(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// CalculateEMA calculates the Exponential Moving Average
//
//	EMA_today = (Price_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1)
//
// With fewer closes than length it falls back to the plain mean.
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 || length < 2 {
		return nil
	}

	if len(closes) < length {
		sma := Mean(closes)
		return &sma
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	sma := Mean(closes[len(closes)-length:])
	return &sma
}
