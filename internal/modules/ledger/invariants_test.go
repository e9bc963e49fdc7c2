package ledger

import (
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCheckInvariants(t *testing.T) {
	p := NewPortfolio("p1", "u1", time.Now())
	assert.NoError(t, CheckInvariants(p))

	p.Items["AAPL"] = &PortfolioItem{Symbol: "AAPL", Quantity: 1, AverageCost: d("1")}
	assert.NoError(t, CheckInvariants(p))

	p.Items["AAPL"].Quantity = 0
	assert.Error(t, CheckInvariants(p))

	p.Items["AAPL"] = &PortfolioItem{Symbol: "MSFT", Quantity: 1}
	assert.Error(t, CheckInvariants(p))
}

func TestCompareHoldings(t *testing.T) {
	got := CompareHoldings(
		map[string]int64{"AAPL": 10, "MSFT": 0, "GOOGL": 3},
		map[string]int64{"AAPL": 10, "AMZN": 2},
	)

	assert.Equal(t, []Discrepancy{
		{Symbol: "AMZN", TradeQuantity: 0, HeldQuantity: 2, Reason: ReasonQuantity},
		{Symbol: "GOOGL", TradeQuantity: 3, HeldQuantity: 0, Reason: ReasonQuantity},
	}, got)

	assert.Empty(t, CompareHoldings(map[string]int64{"AAPL": 4}, map[string]int64{"AAPL": 4}))
}

// Any sequence of accepted trades leaves holdings equal to net traded
// quantity, with a cost basis equal to the running weighted average.
func TestReconciler_HoldingsMatchTradeLog(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL"}

	rapid.Check(t, func(rt *rapid.T) {
		p := NewPortfolio("p1", "u1", time.Now())
		r := NewReconciler()
		net := make(map[string]int64)
		model := make(map[string]decimal.Decimal) // expected average cost

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			symbol := rapid.SampledFrom(symbols).Draw(rt, "symbol")
			qty := rapid.Int64Range(1, 50).Draw(rt, "qty")
			cents := rapid.Int64Range(1, 100000).Draw(rt, "cents")
			price := decimal.New(cents, -2)
			side := domain.TradeSideBuy
			if rapid.Bool().Draw(rt, "sell") {
				side = domain.TradeSideSell
			}

			tr := domain.Trade{Symbol: symbol, Side: side, Quantity: qty, Price: price}
			_, err := r.Apply(p, tr)

			if side.IsSell() && qty > net[symbol] {
				if err == nil {
					rt.Fatalf("oversell of %d %s with %d held was accepted", qty, symbol, net[symbol])
				}
				continue
			}
			if err != nil {
				rt.Fatalf("unexpected rejection: %v", err)
			}

			if side.IsBuy() {
				model[symbol] = WeightedAverageCost(net[symbol], model[symbol], qty, price)
			}
			net[symbol] += tr.SignedQuantity()
			if net[symbol] == 0 {
				delete(model, symbol)
			}
		}

		if err := CheckInvariants(p); err != nil {
			rt.Fatal(err)
		}
		held := make(map[string]int64)
		for symbol, item := range p.Items {
			held[symbol] = item.Quantity
			if !item.AverageCost.Equal(model[symbol]) {
				rt.Fatalf("%s average cost %s, want %s", symbol, item.AverageCost, model[symbol])
			}
		}
		for symbol, q := range net {
			if q == 0 {
				delete(net, symbol)
			}
		}
		if diff := CompareHoldings(net, held); len(diff) > 0 {
			rt.Fatalf("holdings diverged from trade log: %+v", diff)
		}
	})
}

func TestReplay(t *testing.T) {
	p := NewPortfolio("p1", "u1", time.Now())
	err := Replay(p, []domain.Trade{
		trade(domain.TradeSideBuy, "AAPL", 10, "170"),
		trade(domain.TradeSideBuy, "AAPL", 10, "190"),
		trade(domain.TradeSideSell, "AAPL", 5, "200"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.HeldQuantity("AAPL"))
	assert.True(t, p.Items["AAPL"].AverageCost.Equal(d("180")))

	err = Replay(p, []domain.Trade{trade(domain.TradeSideSell, "AAPL", 99, "1")})
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
}
