package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/rs/zerolog"
)

// walFrameThreshold is the WAL size, in frames, above which the job
// truncates the log instead of only checkpointing it.
const walFrameThreshold = 1000

// WALCheckpointJob keeps the ledger's write-ahead log from growing unbounded.
type WALCheckpointJob struct {
	db      *database.DB
	timeout time.Duration
	log     zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:      db,
		timeout: 30 * time.Second,
		log:     log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints passively and truncates the WAL when it is large.
func (j *WALCheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to check WAL for %s: %w", j.db.Name(), err)
	}

	if frames <= walFrameThreshold {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
		return nil
	}

	j.log.Warn().
		Str("database", j.db.Name()).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, truncating")

	return j.db.WALCheckpoint(ctx, "TRUNCATE")
}
