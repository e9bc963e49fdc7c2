package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/config"
	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/aristath/tradeledger/internal/modules/universe"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens and migrates the ledger database. SQLite's busy
// timeout matches the trade lock timeout so both give up together.
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	ledgerDB, err := database.New(database.Config{
		Path:        cfg.LedgerPath(),
		Profile:     database.ProfileLedger,
		Name:        "ledger",
		BusyTimeout: cfg.Trading.LockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}

	if err := ledgerDB.Migrate(); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	log.Info().Str("path", ledgerDB.Path()).Msg("Ledger database initialized")
	return &Container{LedgerDB: ledgerDB}, nil
}

// InitializeRepositories creates repositories and seeds the stock universe.
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	conn := container.LedgerDB.Conn()
	container.StockRepo = universe.NewStockRepository(conn, log)
	container.LedgerStore = ledger.NewStore(conn, cfg.Trading.LockTimeout, log)

	stocks, err := universe.LoadSeed(cfg.SeedStocks, time.Now().UTC())
	if err != nil {
		return err
	}
	added, err := universe.SeedStocks(context.Background(), container.StockRepo, stocks)
	if err != nil {
		return fmt.Errorf("failed to seed stock universe: %w", err)
	}

	log.Info().Int("seed_stocks", len(stocks)).Int("added", added).Msg("Stock universe seeded")
	return nil
}
