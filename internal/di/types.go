// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/aristath/tradeledger/internal/modules/portfolio"
	"github.com/aristath/tradeledger/internal/modules/trading"
	"github.com/aristath/tradeledger/internal/modules/universe"
	"github.com/aristath/tradeledger/internal/realtime"
	"github.com/aristath/tradeledger/internal/reliability"
	"github.com/aristath/tradeledger/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and is the single source of truth for service instances.
type Container struct {
	// Database
	LedgerDB *database.DB

	// Repositories
	StockRepo   *universe.StockRepository
	LedgerStore *ledger.Store

	// Services
	PriceCache       *universe.PriceCache
	StockService     *universe.StockService
	PortfolioService *portfolio.PortfolioService
	TradingService   *trading.TradingService
	BackupService    *reliability.BackupService // nil unless backups are enabled

	// Events and streaming
	EventBus     *events.Bus
	EventManager *events.Manager
	Hub          *realtime.Hub

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// Close releases the container's database handle.
func (c *Container) Close() error {
	if c.LedgerDB == nil {
		return nil
	}
	return c.LedgerDB.Close()
}
