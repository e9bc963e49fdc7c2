package di

import (
	"fmt"

	"github.com/aristath/tradeledger/internal/config"
	"github.com/aristath/tradeledger/internal/reliability"
	"github.com/aristath/tradeledger/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	walCheckpointSchedule = "0 0 * * * *"  // hourly
	integritySchedule     = "0 30 2 * * *" // 02:30 daily
)

// RegisterJobs creates the scheduler and registers background jobs
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := scheduler.New(log)

	if err := sched.AddJob(walCheckpointSchedule, scheduler.NewWALCheckpointJob(container.LedgerDB, log)); err != nil {
		return fmt.Errorf("failed to register wal_checkpoint job: %w", err)
	}

	integrity := reliability.NewLedgerIntegrityJob(
		container.LedgerDB,
		container.LedgerStore,
		container.EventManager,
		cfg.DataDir,
		log,
	)
	if err := sched.AddJob(integritySchedule, integrity); err != nil {
		return fmt.Errorf("failed to register ledger_integrity job: %w", err)
	}

	if container.BackupService != nil {
		backup := reliability.NewLedgerBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backup); err != nil {
			return fmt.Errorf("failed to register ledger_backup job: %w", err)
		}
	}

	container.Scheduler = sched
	return nil
}
