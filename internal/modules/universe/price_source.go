package universe

import (
	"context"
	"fmt"

	"github.com/aristath/tradeledger/internal/domain"
)

// StockReader is the read side of the stock repository
type StockReader interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error)
}

// PriceSource answers "what does this stock cost right now" from the
// cache, falling back to the database.
type PriceSource struct {
	repo  StockReader
	cache *PriceCache
}

// NewPriceSource creates a price source
func NewPriceSource(repo StockReader, cache *PriceCache) *PriceSource {
	return &PriceSource{repo: repo, cache: cache}
}

// GetBySymbol returns the stock with its current price, or domain.ErrStockNotFound.
func (p *PriceSource) GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if s, ok := p.cache.Get(symbol); ok {
		return &s, nil
	}

	stock, err := p.repo.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to look up price for %s: %w", symbol, err)
	}
	if stock == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStockNotFound, symbol)
	}

	p.cache.Set(*stock)
	return stock, nil
}

// GetMany resolves several symbols. Symbols outside the universe are omitted.
func (p *PriceSource) GetMany(ctx context.Context, symbols []string) (map[string]domain.Stock, error) {
	out := make(map[string]domain.Stock, len(symbols))
	for _, symbol := range symbols {
		stock, err := p.GetBySymbol(ctx, symbol)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out[stock.Symbol] = *stock
	}
	return out, nil
}
