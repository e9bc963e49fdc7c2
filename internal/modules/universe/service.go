package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultStatsWindow is the moving-average window used when none is given.
const DefaultStatsWindow = 20

// StockService manages the stock universe and price updates
type StockService struct {
	repo         *StockRepository
	cache        *PriceCache
	prices       *PriceSource
	eventManager *events.Manager
	now          func() time.Time
	log          zerolog.Logger
}

// NewStockService creates a new stock service
func NewStockService(repo *StockRepository, cache *PriceCache, eventManager *events.Manager, log zerolog.Logger) *StockService {
	return &StockService{
		repo:         repo,
		cache:        cache,
		prices:       NewPriceSource(repo, cache),
		eventManager: eventManager,
		now:          time.Now,
		log:          log.With().Str("service", "universe").Logger(),
	}
}

// Prices returns the price source backed by this service's cache
func (s *StockService) Prices() *PriceSource {
	return s.prices
}

// List returns every stock in the universe
func (s *StockService) List(ctx context.Context) ([]domain.Stock, error) {
	stocks, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, stock := range stocks {
		s.cache.Set(stock)
	}
	return stocks, nil
}

// Get returns one stock, or domain.ErrStockNotFound
func (s *StockService) Get(ctx context.Context, symbol string) (*domain.Stock, error) {
	return s.prices.GetBySymbol(ctx, symbol)
}

// UpdatePrice sets a stock's current price. Trades placed afterwards
// execute at the new price; existing trades keep theirs.
func (s *StockService) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) (*PriceUpdate, error) {
	symbol = domain.NormalizeSymbol(symbol)

	current, err := s.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	warning, err := ValidatePrice(price, current.CurrentPrice)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	previous, err := s.repo.UpdatePrice(ctx, symbol, price, at)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		s.cache.Invalidate(symbol)
		return nil, fmt.Errorf("%w: %s", domain.ErrStockNotFound, symbol)
	}

	updated := domain.Stock{Symbol: symbol, Name: current.Name, CurrentPrice: price, LastUpdated: at}
	s.cache.Set(updated)

	logEvent := s.log.Info()
	if warning != "" {
		logEvent = s.log.Warn().Str("warning", warning)
	}
	logEvent.
		Str("symbol", symbol).
		Str("previous_price", previous.String()).
		Str("new_price", price.String()).
		Msg("Stock price updated")

	if s.eventManager != nil {
		s.eventManager.Emit("universe", &events.PriceUpdatedData{Stock: updated, PreviousPrice: previous.String()})
	}

	return &PriceUpdate{
		Symbol:        symbol,
		PreviousPrice: *previous,
		NewPrice:      price,
		UpdatedAt:     at,
		Warning:       warning,
	}, nil
}

// PriceStats is the statistical summary of a stock's recorded prices
type PriceStats struct {
	Symbol string `json:"symbol"`
	formulas.PriceStats
}

// GetPriceStats summarises the last samples recorded prices of symbol.
// The current price is always included as the newest sample.
func (s *StockService) GetPriceStats(ctx context.Context, symbol string, samples, window int) (*PriceStats, error) {
	stock, err := s.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if samples <= 0 {
		samples = 250
	}
	if window <= 0 {
		window = DefaultStatsWindow
	}

	history, err := s.repo.GetPriceHistory(ctx, stock.Symbol, samples)
	if err != nil {
		return nil, err
	}

	series := make([]float64, 0, len(history)+1)
	for _, p := range history {
		series = append(series, p.Price.InexactFloat64())
	}
	current := stock.CurrentPrice.InexactFloat64()
	if len(series) == 0 || series[len(series)-1] != current {
		series = append(series, current)
	}

	return &PriceStats{Symbol: stock.Symbol, PriceStats: formulas.Summarize(series, window)}, nil
}
