package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// criticalFreeBytes halts maintenance: the ledger cannot safely grow.
	criticalFreeBytes = 500 * 1000 * 1000
	lowFreeBytes      = 5 * 1000 * 1000 * 1000
)

// LedgerBackupJob uploads a fresh ledger snapshot and rotates old ones.
type LedgerBackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewLedgerBackupJob creates a new ledger backup job
func NewLedgerBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *LedgerBackupJob {
	return &LedgerBackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       30 * time.Minute,
		log:           log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *LedgerBackupJob) Name() string {
	return "ledger_backup"
}

// Run executes the backup job
func (j *LedgerBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		j.log.Error().Err(err).Msg("Ledger backup failed")
		return err
	}

	// A failed rotation leaves extra backups behind, nothing worse
	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// IntegrityChecker is the subset of *database.DB used by the integrity job.
type IntegrityChecker interface {
	QuickCheck(ctx context.Context) error
	Name() string
}

// LedgerAuditor audits users' holdings against their trade logs.
type LedgerAuditor interface {
	UserIDs(ctx context.Context) ([]string, error)
	Reconcile(ctx context.Context, userID string) (*ledger.ReconciliationReport, error)
}

// IntegrityReport summarizes one run of the integrity job.
type IntegrityReport struct {
	UsersChecked       int
	InconsistentUsers  []string
	AvailableDiskBytes uint64
}

// LedgerIntegrityJob checks SQLite integrity, free disk space and that every
// user's holdings still agree with the trade log.
type LedgerIntegrityJob struct {
	db           IntegrityChecker
	auditor      LedgerAuditor
	eventManager *events.Manager
	dataDir      string
	timeout      time.Duration
	log          zerolog.Logger

	diskUsage func(path string) (*disk.UsageStat, error)
}

// NewLedgerIntegrityJob creates a new ledger integrity job
func NewLedgerIntegrityJob(
	db IntegrityChecker,
	auditor LedgerAuditor,
	eventManager *events.Manager,
	dataDir string,
	log zerolog.Logger,
) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		db:           db,
		auditor:      auditor,
		eventManager: eventManager,
		dataDir:      dataDir,
		timeout:      10 * time.Minute,
		log:          log.With().Str("job", "ledger_integrity").Logger(),
		diskUsage:    disk.Usage,
	}
}

// Name returns the job name for scheduler
func (j *LedgerIntegrityJob) Name() string {
	return "ledger_integrity"
}

// Run executes the integrity job
func (j *LedgerIntegrityJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.Check(ctx)
	return err
}

// Check runs every integrity step and reports what it found. Disagreeing
// users are reported and announced, not treated as a job failure.
func (j *LedgerIntegrityJob) Check(ctx context.Context) (*IntegrityReport, error) {
	j.log.Info().Msg("Starting ledger integrity check")
	startTime := time.Now()
	report := &IntegrityReport{}

	if err := j.db.QuickCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("CRITICAL: ledger database failed integrity check")
		j.emitError(err, map[string]interface{}{"database": j.db.Name()})
		return report, fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}

	available, err := j.checkDiskSpace()
	if err != nil {
		return report, err
	}
	report.AvailableDiskBytes = available

	users, err := j.auditor.UserIDs(ctx)
	if err != nil {
		return report, err
	}
	for _, userID := range users {
		rec, err := j.auditor.Reconcile(ctx, userID)
		if err != nil {
			return report, err
		}
		report.UsersChecked++
		if rec.Consistent {
			continue
		}
		report.InconsistentUsers = append(report.InconsistentUsers, userID)
		j.emitError(fmt.Errorf("holdings disagree with trade log"), map[string]interface{}{
			"user_id":       userID,
			"portfolio_id":  rec.PortfolioID,
			"discrepancies": rec.Discrepancies,
		})
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("users_checked", report.UsersChecked).
		Int("inconsistent_users", len(report.InconsistentUsers)).
		Msg("Ledger integrity check completed")
	return report, nil
}

func (j *LedgerIntegrityJob) checkDiskSpace() (uint64, error) {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if usage.Free < criticalFreeBytes {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space for the ledger")
		return usage.Free, fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	}
	if usage.Free < lowFreeBytes {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}
	return usage.Free, nil
}

func (j *LedgerIntegrityJob) emitError(err error, context map[string]interface{}) {
	if j.eventManager != nil {
		j.eventManager.EmitError("reliability", err, context)
	}
}
