// Package ledger owns the portfolio holdings, the cost-basis arithmetic that
// keeps them consistent with the trade log, and the transactional store that
// persists both.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPortfolioName is given to lazily created portfolios.
const DefaultPortfolioName = "My Main Portfolio"

// Portfolio is a user's set of holdings. A user has at most one.
type Portfolio struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     map[string]*PortfolioItem // keyed by symbol
}

// PortfolioItem is a single holding. Quantity is always positive;
// a zero holding has no item.
type PortfolioItem struct {
	PortfolioID string
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
}

// NewPortfolio returns an empty portfolio with the default name.
func NewPortfolio(id, userID string, at time.Time) *Portfolio {
	return &Portfolio{
		ID:        id,
		UserID:    userID,
		Name:      DefaultPortfolioName,
		CreatedAt: at,
		UpdatedAt: at,
		Items:     make(map[string]*PortfolioItem),
	}
}

// HeldQuantity returns the quantity held for symbol, or 0.
func (p *Portfolio) HeldQuantity(symbol string) int64 {
	if item, ok := p.Items[symbol]; ok {
		return item.Quantity
	}
	return 0
}

// Item returns a copy of the holding for symbol.
func (p *Portfolio) Item(symbol string) (PortfolioItem, bool) {
	item, ok := p.Items[symbol]
	if !ok {
		return PortfolioItem{}, false
	}
	return *item, true
}

// Symbols returns the held symbols in ascending order.
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.Items))
	for symbol := range p.Items {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// SortedItems returns copies of the holdings ordered by symbol.
func (p *Portfolio) SortedItems() []PortfolioItem {
	items := make([]PortfolioItem, 0, len(p.Items))
	for _, symbol := range p.Symbols() {
		items = append(items, *p.Items[symbol])
	}
	return items
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	clone := *p
	clone.Items = make(map[string]*PortfolioItem, len(p.Items))
	for symbol, item := range p.Items {
		itemCopy := *item
		clone.Items[symbol] = &itemCopy
	}
	return &clone
}

// ChangeKind says how a trade affected a holding.
type ChangeKind string

const (
	ItemCreated ChangeKind = "created"
	ItemUpdated ChangeKind = "updated"
	ItemDeleted ChangeKind = "deleted"
)

// ItemChange is the single holding mutation a trade produces. For
// ItemDeleted, Item carries the holding as it was before removal.
type ItemChange struct {
	Kind ChangeKind
	Item PortfolioItem
}
