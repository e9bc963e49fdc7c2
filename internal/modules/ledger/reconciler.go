package ledger

import (
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Reconciler applies executed trades to a portfolio using weighted-average
// cost basis. It is pure; persisting the resulting change is the caller's job.
type Reconciler struct{}

// NewReconciler creates a reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Apply mutates portfolio to reflect trade and reports the holding change.
//
// A buy creates the holding at the trade price or re-weights the average
// cost. A sell reduces the quantity, keeps the average cost, and removes
// the holding when it reaches zero. On error the portfolio is untouched.
func (r *Reconciler) Apply(portfolio *Portfolio, trade domain.Trade) (ItemChange, error) {
	if trade.Quantity <= 0 {
		return ItemChange{}, &domain.TradeError{Kind: domain.ErrInvalidQuantity, Symbol: trade.Symbol, Requested: trade.Quantity}
	}
	if portfolio.Items == nil {
		portfolio.Items = make(map[string]*PortfolioItem)
	}

	switch trade.Side {
	case domain.TradeSideBuy:
		return r.applyBuy(portfolio, trade), nil
	case domain.TradeSideSell:
		return r.applySell(portfolio, trade)
	default:
		return ItemChange{}, &domain.TradeError{Kind: domain.ErrInvalidSide, Symbol: trade.Symbol, Detail: string(trade.Side)}
	}
}

func (r *Reconciler) applyBuy(portfolio *Portfolio, trade domain.Trade) ItemChange {
	item, ok := portfolio.Items[trade.Symbol]
	if !ok {
		item = &PortfolioItem{
			PortfolioID: portfolio.ID,
			Symbol:      trade.Symbol,
			Quantity:    trade.Quantity,
			AverageCost: trade.Price,
		}
		portfolio.Items[trade.Symbol] = item
		portfolio.UpdatedAt = trade.ExecutedAt
		return ItemChange{Kind: ItemCreated, Item: *item}
	}

	item.AverageCost = WeightedAverageCost(item.Quantity, item.AverageCost, trade.Quantity, trade.Price)
	item.Quantity += trade.Quantity
	portfolio.UpdatedAt = trade.ExecutedAt
	return ItemChange{Kind: ItemUpdated, Item: *item}
}

func (r *Reconciler) applySell(portfolio *Portfolio, trade domain.Trade) (ItemChange, error) {
	item, ok := portfolio.Items[trade.Symbol]
	held := int64(0)
	if ok {
		held = item.Quantity
	}
	if held < trade.Quantity {
		return ItemChange{}, &domain.TradeError{
			Kind:      domain.ErrInsufficientHoldings,
			Symbol:    trade.Symbol,
			Requested: trade.Quantity,
			Available: held,
		}
	}

	portfolio.UpdatedAt = trade.ExecutedAt
	if held == trade.Quantity {
		removed := *item
		delete(portfolio.Items, trade.Symbol)
		return ItemChange{Kind: ItemDeleted, Item: removed}, nil
	}

	item.Quantity -= trade.Quantity
	return ItemChange{Kind: ItemUpdated, Item: *item}, nil
}

// WeightedAverageCost is (heldQty*heldAvg + buyQty*buyPrice) / (heldQty+buyQty).
func WeightedAverageCost(heldQty int64, heldAvg decimal.Decimal, buyQty int64, buyPrice decimal.Decimal) decimal.Decimal {
	total := heldQty + buyQty
	if total == 0 {
		return decimal.Zero
	}
	cost := heldAvg.Mul(decimal.NewFromInt(heldQty)).Add(buyPrice.Mul(decimal.NewFromInt(buyQty)))
	return cost.Div(decimal.NewFromInt(total))
}
