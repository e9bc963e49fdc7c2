package universe

import (
	"sync"

	"github.com/aristath/tradeledger/internal/domain"
)

// PriceCache holds the latest known stock rows in memory. Safe for
// concurrent use.
type PriceCache struct {
	mu     sync.RWMutex
	stocks map[string]domain.Stock
}

// NewPriceCache creates an empty cache
func NewPriceCache() *PriceCache {
	return &PriceCache{stocks: make(map[string]domain.Stock)}
}

// Get returns the cached stock for symbol
func (c *PriceCache) Get(symbol string) (domain.Stock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stocks[symbol]
	return s, ok
}

// Set stores stock, replacing any cached entry for its symbol
func (c *PriceCache) Set(stock domain.Stock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks[stock.Symbol] = stock
}

// Invalidate drops symbol from the cache
func (c *PriceCache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stocks, symbol)
}

// Len returns the number of cached stocks
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stocks)
}
