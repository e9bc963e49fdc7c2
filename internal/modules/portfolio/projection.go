// Package portfolio provides the read-side valuation of user portfolios.
package portfolio

import (
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// PercentPlaces is the rounding applied to the total gain/loss percentage.
const PercentPlaces = 4

var hundred = decimal.NewFromInt(100)

// BuildView values a portfolio at the given prices. Derived figures are
// computed here on every read and never stored.
//
// A holding whose stock is missing from prices is valued at zero and
// named after its symbol.
func BuildView(p *ledger.Portfolio, prices map[string]domain.Stock) domain.PortfolioView {
	view := domain.PortfolioView{
		ID:            p.ID,
		UserID:        p.UserID,
		Name:          p.Name,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Items:         make([]domain.PortfolioItemView, 0, len(p.Items)),
		TotalValue:    decimal.Zero,
		TotalCost:     decimal.Zero,
		TotalGainLoss: decimal.Zero,
	}

	for _, item := range p.SortedItems() {
		iv := valueItem(item, prices)
		view.Items = append(view.Items, iv)
		view.TotalValue = view.TotalValue.Add(iv.MarketValue)
		view.TotalCost = view.TotalCost.Add(iv.CostBasis)
	}

	view.TotalGainLoss = view.TotalValue.Sub(view.TotalCost)
	view.TotalGainLossPercent = GainLossPercent(view.TotalGainLoss, view.TotalValue)
	return view
}

// GainLossPercent returns gain / value × 100, or zero when value is zero.
func GainLossPercent(gain, value decimal.Decimal) decimal.Decimal {
	if value.IsZero() {
		return decimal.Zero
	}
	return gain.Div(value).Mul(hundred).Round(PercentPlaces)
}

func valueItem(item ledger.PortfolioItem, prices map[string]domain.Stock) domain.PortfolioItemView {
	name := item.Symbol
	price := decimal.Zero
	if stock, ok := prices[item.Symbol]; ok {
		name = stock.Name
		price = stock.CurrentPrice
	}

	qty := decimal.NewFromInt(item.Quantity)
	marketValue := qty.Mul(price)
	costBasis := qty.Mul(item.AverageCost)

	return domain.PortfolioItemView{
		Symbol:             item.Symbol,
		Name:               name,
		Quantity:           item.Quantity,
		AverageCost:        item.AverageCost,
		CurrentPrice:       price,
		MarketValue:        marketValue,
		CostBasis:          costBasis,
		UnrealizedGainLoss: marketValue.Sub(costBasis),
	}
}
