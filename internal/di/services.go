package di

import (
	"context"
	"fmt"

	"github.com/aristath/tradeledger/internal/config"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/modules/portfolio"
	"github.com/aristath/tradeledger/internal/modules/trading"
	"github.com/aristath/tradeledger/internal/modules/universe"
	"github.com/aristath/tradeledger/internal/realtime"
	"github.com/aristath/tradeledger/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event plumbing and every service.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Hub = realtime.NewHub(container.EventBus, log)

	container.PriceCache = universe.NewPriceCache()
	container.StockService = universe.NewStockService(container.StockRepo, container.PriceCache, container.EventManager, log)
	prices := container.StockService.Prices()

	container.PortfolioService = portfolio.NewPortfolioService(container.LedgerStore, container.LedgerStore, prices, log)
	container.TradingService = trading.NewTradingService(
		container.LedgerStore,
		prices,
		container.LedgerStore,
		container.PortfolioService,
		container.EventManager,
		trading.RetryPolicy{MaxRetries: cfg.Trading.MaxRetries, Backoff: trading.DefaultRetryBackoff},
		log,
	)

	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup object store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.LedgerDB, store, cfg.DataDir, container.EventManager, log)
	}

	log.Info().Bool("backups", container.BackupService != nil).Msg("Services initialized")
	return nil
}
