package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(252)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return returns
}

// PriceStats summarises a price series, oldest first.
type PriceStats struct {
	Samples    int      `json:"samples"`
	Last       float64  `json:"last"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Mean       float64  `json:"mean"`
	SMA        *float64 `json:"sma,omitempty"`
	EMA        *float64 `json:"ema,omitempty"`
	Volatility float64  `json:"annualized_volatility"`
	Window     int      `json:"window"`
}

// Summarize computes PriceStats over prices with the given moving-average window.
func Summarize(prices []float64, window int) PriceStats {
	s := PriceStats{Samples: len(prices), Window: window}
	if len(prices) == 0 {
		return s
	}

	s.Last = prices[len(prices)-1]
	s.Min = floats.Min(prices)
	s.Max = floats.Max(prices)
	s.Mean = Mean(prices)
	s.SMA = CalculateSMA(prices, window)
	s.EMA = CalculateEMA(prices, window)
	s.Volatility = AnnualizedVolatility(CalculateReturns(prices))
	return s
}
