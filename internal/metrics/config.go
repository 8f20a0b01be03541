package metrics

import (
	"time"

	"codeberg.org/mutker/motortwin/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/motortwin/ticks.db"
	defaultBackupDir    = "/var/lib/motortwin/backups"
	defaultBatchSize    = 50
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	Enabled         bool
	DBPath          string
	BackupDir       string
	BackupOnMigrate bool
	BatchSize       int
	BatchTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		DBPath:          defaultDBPath,
		BackupDir:       defaultBackupDir,
		BackupOnMigrate: true,
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 {
		return errors.New().WithMessage(ErrInvalidConfig, "batch size must be at least 1")
	}
	if c.BatchTimeout < 0 {
		return errors.New().WithMessage(ErrInvalidConfig, "batch timeout must not be negative")
	}
	return nil
}
