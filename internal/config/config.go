// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the ledger database (always absolute)
	Port       int
	DevMode    bool
	LogLevel   string
	LogPretty  bool
	LogFile    string
	SeedStocks string // Optional YAML file overriding the built-in stock universe

	Trading TradingConfig
	Backup  BackupConfig
}

// TradingConfig controls the trade execution coordinator.
type TradingConfig struct {
	LockTimeout time.Duration // Maximum wait for the ledger write lock
	MaxRetries  int           // Automatic retries on lock contention
}

// BackupConfig controls scheduled ledger snapshots.
type BackupConfig struct {
	Enabled         bool
	Schedule        string // Cron expression with seconds field
	RetentionDays   int
	Bucket          string
	Endpoint        string // Custom S3-compatible endpoint (R2, MinIO); empty means AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADELEDGER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:    absDataDir,
		Port:       getEnvAsInt("GO_PORT", 8001),
		DevMode:    getEnvAsBool("DEV_MODE", false),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvAsBool("LOG_PRETTY", false),
		LogFile:    getEnv("LOG_FILE", ""),
		SeedStocks: getEnv("SEED_STOCKS", ""),
		Trading: TradingConfig{
			LockTimeout: getEnvAsDuration("TRADE_LOCK_TIMEOUT", 5*time.Second),
			MaxRetries:  getEnvAsInt("TRADE_MAX_RETRIES", 2),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
			Bucket:          getEnv("S3_BUCKET", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LedgerPath returns the SQLite file backing the ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Trading.LockTimeout <= 0 {
		return fmt.Errorf("TRADE_LOCK_TIMEOUT must be positive, got %s", c.Trading.LockTimeout)
	}
	if c.Trading.MaxRetries < 0 {
		return fmt.Errorf("TRADE_MAX_RETRIES must not be negative, got %d", c.Trading.MaxRetries)
	}

	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BACKUP_ENABLED is set")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("S3 credentials are required when BACKUP_ENABLED is set")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("BACKUP_RETENTION_DAYS must be at least 1, got %d", c.Backup.RetentionDays)
		}
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Backup.Schedule); err != nil {
			return fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", c.Backup.Schedule, err)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("750ms") or bare seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
