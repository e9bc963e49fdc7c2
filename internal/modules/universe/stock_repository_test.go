package universe

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStockTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE stocks (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			current_price TEXT NOT NULL,
			last_updated INTEGER NOT NULL
		);
		CREATE TABLE price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

func TestStockRepository_InsertAndGet(t *testing.T) {
	repo := NewStockRepository(setupStockTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	inserted, err := repo.InsertIfMissing(ctx, domain.Stock{Symbol: "AAPL", Name: "Apple Inc.", CurrentPrice: decimal.RequireFromString("170.00"), LastUpdated: at})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfMissing(ctx, domain.Stock{Symbol: "AAPL", Name: "Other", CurrentPrice: decimal.NewFromInt(1), LastUpdated: at})
	require.NoError(t, err)
	assert.False(t, inserted, "existing stock is left alone")

	stock, err := repo.GetBySymbol(ctx, "aapl")
	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.Equal(t, "Apple Inc.", stock.Name)
	assert.True(t, stock.CurrentPrice.Equal(decimal.NewFromInt(170)))
	assert.Equal(t, at, stock.LastUpdated)

	missing, err := repo.GetBySymbol(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStockRepository_GetAllOrdered(t *testing.T) {
	repo := NewStockRepository(setupStockTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	for _, symbol := range []string{"MSFT", "AAPL", "GOOGL"} {
		_, err := repo.InsertIfMissing(ctx, domain.Stock{Symbol: symbol, Name: symbol, CurrentPrice: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}

	stocks, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 3)
	assert.Equal(t, "AAPL", stocks[0].Symbol)
	assert.Equal(t, "MSFT", stocks[2].Symbol)
}

func TestStockRepository_UpdatePriceRecordsHistory(t *testing.T) {
	repo := NewStockRepository(setupStockTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.InsertIfMissing(ctx, domain.Stock{Symbol: "MSFT", Name: "Microsoft Corp.", CurrentPrice: decimal.NewFromInt(250), LastUpdated: base})
	require.NoError(t, err)

	for i, price := range []string{"251.5", "255", "249.25"} {
		prev, err := repo.UpdatePrice(ctx, "MSFT", decimal.RequireFromString(price), base.Add(time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, prev)
	}

	stock, err := repo.GetBySymbol(ctx, "MSFT")
	require.NoError(t, err)
	assert.True(t, stock.CurrentPrice.Equal(decimal.RequireFromString("249.25")))

	history, err := repo.GetPriceHistory(ctx, "MSFT", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Price.Equal(decimal.NewFromInt(255)), "oldest of the last two first")
	assert.True(t, history[1].Price.Equal(decimal.RequireFromString("249.25")))

	prev, err := repo.UpdatePrice(ctx, "NOPE", decimal.NewFromInt(1), base)
	require.NoError(t, err)
	assert.Nil(t, prev)
}
