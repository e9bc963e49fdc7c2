// Package reliability provides ledger backups and maintenance jobs.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tradeledger/internal/events"
	"github.com/rs/zerolog"
)

const (
	backupPrefix      = "tradeledger-backup-"
	backupSuffix      = ".tar.gz"
	backupTimeLayout  = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1"
	minBackupsToKeep  = 3
	stagingDirName    = "backup-staging"
	snapshotExtension = ".db"
)

// Snapshotter produces a consistent copy of a live database.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, dest string) error
	Name() string
}

// BackupMetadata is stored next to the snapshot inside each archive.
type BackupMetadata struct {
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Database  DatabaseMetadata `json:"database"`
}

// DatabaseMetadata contains metadata about the database in the backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents information about a stored backup
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the ledger into tar.gz archives in an object store.
type BackupService struct {
	db           Snapshotter
	store        ObjectStore
	dataDir      string
	eventManager *events.Manager
	log          zerolog.Logger
	now          func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(
	db Snapshotter,
	store ObjectStore,
	dataDir string,
	eventManager *events.Manager,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		db:           db,
		store:        store,
		dataDir:      dataDir,
		eventManager: eventManager,
		log:          log.With().Str("service", "backup").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateAndUploadBackup snapshots the database, archives it with its
// checksum metadata and uploads the archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (*BackupInfo, error) {
	s.log.Info().Msg("Starting ledger backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, stagingDirName+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	timestamp := s.now()
	snapshotName := s.db.Name() + snapshotExtension
	snapshotPath := filepath.Join(stagingDir, snapshotName)

	if err := s.db.SnapshotTo(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	checksum, err := calculateChecksum(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: timestamp,
		Version:   metadataVersion,
		Database: DatabaseMetadata{
			Name:      s.db.Name(),
			Filename:  snapshotName,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		},
	}
	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := backupPrefix + timestamp.Format(backupTimeLayout) + backupSuffix
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, []string{snapshotName, metadataFilename}); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Str("checksum", checksum).
		Msg("Ledger backup completed successfully")

	if s.eventManager != nil {
		s.eventManager.Emit("reliability", &events.BackupCompletedData{
			Filename:  archiveName,
			SizeBytes: archiveInfo.Size(),
			Checksum:  checksum,
		})
	}

	return &BackupInfo{Filename: archiveName, Timestamp: timestamp, SizeBytes: archiveInfo.Size()}, nil
}

// ListBackups lists stored backups, newest first. Objects that do not
// follow the backup naming scheme are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		timestamp, ok := parseBackupName(obj.Key)
		if !ok {
			s.log.Warn().Str("filename", obj.Key).Msg("Failed to parse timestamp from filename")
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period and
// returns how many were removed. The newest minBackupsToKeep always stay;
// retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}

func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	t, err := time.Parse(backupTimeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes the named files from sourceDir into a tar.gz.
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
