package testing

import (
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/shopspring/decimal"
)

// NewStockFixtures returns the default stock universe used across tests
func NewStockFixtures() []domain.Stock {
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	return []domain.Stock{
		{Symbol: "AAPL", Name: "Apple Inc.", CurrentPrice: decimal.RequireFromString("170.00"), LastUpdated: now},
		{Symbol: "MSFT", Name: "Microsoft Corp.", CurrentPrice: decimal.RequireFromString("250.00"), LastUpdated: now},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", CurrentPrice: decimal.RequireFromString("120.00"), LastUpdated: now},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", CurrentPrice: decimal.RequireFromString("100.00"), LastUpdated: now},
	}
}

// SeedStocks writes stocks straight into the stocks table.
func SeedStocks(t *testing.T, db *database.DB, stocks ...domain.Stock) {
	t.Helper()
	if len(stocks) == 0 {
		stocks = NewStockFixtures()
	}

	for _, s := range stocks {
		_, err := db.Conn().Exec(`
			INSERT INTO stocks (symbol, name, current_price, last_updated) VALUES (?, ?, ?, ?)
			ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, current_price = excluded.current_price, last_updated = excluded.last_updated`,
			s.Symbol, s.Name, s.CurrentPrice.String(), s.LastUpdated.UnixNano())
		if err != nil {
			t.Fatalf("Failed to seed stock %s: %v", s.Symbol, err)
		}
	}
}

// SetStockPrice changes a seeded stock's price in place.
func SetStockPrice(t *testing.T, db *database.DB, symbol, price string) {
	t.Helper()
	res, err := db.Conn().Exec(`UPDATE stocks SET current_price = ? WHERE symbol = ?`,
		decimal.RequireFromString(price).String(), symbol)
	if err != nil {
		t.Fatalf("Failed to set price for %s: %v", symbol, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("Stock %s not seeded", symbol)
	}
}

// CountRows returns the row count of table, optionally filtered by a WHERE clause.
func CountRows(t *testing.T, db *database.DB, table, where string, args ...interface{}) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.Conn().QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
