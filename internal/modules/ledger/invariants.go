package ledger

import (
	"fmt"
	"sort"

	"github.com/aristath/tradeledger/internal/domain"
)

// CheckInvariants verifies the structural rules every stored portfolio obeys.
func CheckInvariants(p *Portfolio) error {
	for symbol, item := range p.Items {
		if item == nil {
			return fmt.Errorf("holding %s is nil", symbol)
		}
		if item.Symbol != symbol {
			return fmt.Errorf("holding keyed %s carries symbol %s", symbol, item.Symbol)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("holding %s has non-positive quantity %d", symbol, item.Quantity)
		}
		if item.AverageCost.IsNegative() {
			return fmt.Errorf("holding %s has negative average cost %s", symbol, item.AverageCost)
		}
	}
	return nil
}

// Discrepancy reasons.
const (
	ReasonQuantity     = "quantity"
	ReasonAverageCost  = "average_cost"
	ReasonReplayFailed = "replay_failed"
)

// Discrepancy is a symbol whose stored holding disagrees with the trade log.
type Discrepancy struct {
	Symbol        string `json:"symbol,omitempty"`
	TradeQuantity int64  `json:"trade_quantity"` // Σ buys − Σ sells
	HeldQuantity  int64  `json:"held_quantity"`
	Reason        string `json:"reason"`
}

// CompareHoldings lists every symbol where the net traded quantity differs
// from the held quantity, ordered by symbol.
func CompareHoldings(netTraded map[string]int64, held map[string]int64) []Discrepancy {
	seen := make(map[string]struct{}, len(netTraded)+len(held))
	for symbol := range netTraded {
		seen[symbol] = struct{}{}
	}
	for symbol := range held {
		seen[symbol] = struct{}{}
	}

	var out []Discrepancy
	for symbol := range seen {
		if netTraded[symbol] != held[symbol] {
			out = append(out, Discrepancy{
				Symbol:        symbol,
				TradeQuantity: netTraded[symbol],
				HeldQuantity:  held[symbol],
				Reason:        ReasonQuantity,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Replay rebuilds a portfolio from scratch by applying trades in order.
func Replay(portfolio *Portfolio, trades []domain.Trade) error {
	r := NewReconciler()
	for _, trade := range trades {
		if _, err := r.Apply(portfolio, trade); err != nil {
			return fmt.Errorf("replay trade %s: %w", trade.ID, err)
		}
	}
	return nil
}
