package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/config"
	"github.com/aristath/tradeledger/internal/modules/trading"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:  t.TempDir(),
		Port:     8001,
		LogLevel: "info",
		Trading: config.TradingConfig{
			LockTimeout: 2 * time.Second,
			MaxRetries:  1,
		},
		Backup: config.BackupConfig{Schedule: "0 0 3 * * *", RetentionDays: 30},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.TradingService)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.Hub)
	assert.Nil(t, container.BackupService)

	var names []string
	for _, s := range container.Scheduler.Statuses() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"wal_checkpoint", "ledger_integrity"}, names)

	stocks, err := container.StockService.List(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, stocks)

	confirmation, err := container.TradingService.PlaceTrade(context.Background(), trading.PlaceTradeRequest{
		UserID: "alice", Symbol: "aapl", Side: "BUY", Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", confirmation.Symbol)

	view, err := container.PortfolioService.GetPortfolio(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
}

func TestWire_SeedIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	first, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	before, err := first.StockService.List(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()
	after, err := second.StockService.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestWire_CustomSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedStocks = filepath.Join(cfg.DataDir, "stocks.yaml")
	require.NoError(t, os.WriteFile(cfg.SeedStocks, []byte("stocks:\n  - symbol: TSLA\n    name: Tesla\n    price: \"200.00\"\n"), 0o644))

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	stocks, err := container.StockService.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "TSLA", stocks[0].Symbol)
}

func TestWire_BadSeedFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedStocks = filepath.Join(cfg.DataDir, "missing.yaml")

	_, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
