package universe

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed seed_stocks.yaml
var defaultSeed []byte

type seedFile struct {
	Stocks []seedStock `yaml:"stocks"`
}

type seedStock struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
}

// ParseSeed decodes a seed document into stocks stamped with at.
func ParseSeed(data []byte, at time.Time) ([]domain.Stock, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stock seed: %w", err)
	}

	stocks := make([]domain.Stock, 0, len(file.Stocks))
	seen := make(map[string]bool, len(file.Stocks))
	for i, s := range file.Stocks {
		symbol := domain.NormalizeSymbol(s.Symbol)
		if symbol == "" || s.Name == "" {
			return nil, fmt.Errorf("stock seed entry %d: symbol and name are required", i)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("stock seed entry %d: duplicate symbol %s", i, symbol)
		}
		seen[symbol] = true

		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("stock seed entry %s: bad price %q: %w", symbol, s.Price, err)
		}
		if _, err := ValidatePrice(price, decimal.Zero); err != nil {
			return nil, fmt.Errorf("stock seed entry %s: %w", symbol, err)
		}

		stocks = append(stocks, domain.Stock{Symbol: symbol, Name: s.Name, CurrentPrice: price, LastUpdated: at})
	}
	return stocks, nil
}

// LoadSeed reads the seed from path, or the built-in universe when path is empty.
func LoadSeed(path string, at time.Time) ([]domain.Stock, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read stock seed %s: %w", path, err)
		}
	}
	return ParseSeed(data, at)
}

// Seeder inserts seed stocks that are not yet in the database
type Seeder interface {
	InsertIfMissing(ctx context.Context, stock domain.Stock) (bool, error)
}

// SeedStocks inserts every missing stock and returns how many were added.
func SeedStocks(ctx context.Context, repo Seeder, stocks []domain.Stock) (int, error) {
	added := 0
	for _, s := range stocks {
		inserted, err := repo.InsertIfMissing(ctx, s)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
