package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/filesync/internal/core/checksum"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/hashdb"
	"github.com/Ning0612/filesync/internal/lock"
)

// Config represents the complete configuration for filesync
type Config struct {
	// DefaultSrc is used when --src is not given
	DefaultSrc string `mapstructure:"default_src"`

	// IgnoreDirs are directory basenames never descended into
	IgnoreDirs []string `mapstructure:"ignore_dirs"`

	// DBFilename is the per-root hash cache file name
	DBFilename string `mapstructure:"db_filename"`

	Hash    HashConfig    `mapstructure:"hash"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Log     LogConfig     `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
	Lock    LockConfig    `mapstructure:"lock"`
}

// HashConfig selects the content hash
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// ScanConfig tunes tree scanning
type ScanConfig struct {
	Workers int `mapstructure:"workers"`
}

// LogConfig configures the diagnostic log file
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LockConfig configures where pair locks are kept
type LockConfig struct {
	Dir string `mapstructure:"dir"`

	// StaleTimeout is how long a lock held from another host is honored
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBFilename: hashdb.DefaultFilename,
		Hash: HashConfig{
			Algorithm: string(checksum.SHA256),
			ChunkSize: checksum.DefaultBufferSize,
		},
		Scan: ScanConfig{Workers: 1},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxAgeDays: 30,
			MaxBackups: 5,
		},
		History: HistoryConfig{Enabled: true},
		Lock:    LockConfig{StaleTimeout: lock.DefaultStaleTimeout},
	}
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if !checksum.IsSupported(checksum.Algorithm(c.Hash.Algorithm)) {
		return fmt.Errorf("%w: unsupported hash algorithm: %q", domain.ErrConfigInvalid, c.Hash.Algorithm)
	}
	if c.Hash.ChunkSize <= 0 {
		return fmt.Errorf("%w: hash.chunk_size must be positive, got %d", domain.ErrConfigInvalid, c.Hash.ChunkSize)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("%w: scan.workers must be at least 1, got %d", domain.ErrConfigInvalid, c.Scan.Workers)
	}
	if c.DBFilename == "" {
		return fmt.Errorf("%w: db_filename cannot be empty", domain.ErrConfigInvalid)
	}
	if strings.ContainsAny(c.DBFilename, `/\`) || c.DBFilename == "." || c.DBFilename == ".." {
		return fmt.Errorf("%w: db_filename must be a plain file name: %q", domain.ErrConfigInvalid, c.DBFilename)
	}
	for _, name := range c.IgnoreDirs {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: ignore_dirs entries must be directory names: %q", domain.ErrConfigInvalid, name)
		}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxAgeDays < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: log rotation limits cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Lock.StaleTimeout < 0 {
		return fmt.Errorf("%w: lock.stale_timeout cannot be negative, got %s", domain.ErrConfigInvalid, c.Lock.StaleTimeout)
	}
	return nil
}

// HashAlgorithm returns the configured algorithm
func (c *Config) HashAlgorithm() checksum.Algorithm {
	return checksum.Algorithm(c.Hash.Algorithm)
}

// HistoryDir returns the history database directory
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "filesync")
	}
	return filepath.Join(dir, "filesync")
}

// expandPaths expands ~ and environment variables in every path field
func (c *Config) expandPaths() {
	for _, p := range []*string{&c.DefaultSrc, &c.Log.File, &c.History.Dir, &c.Lock.Dir} {
		if *p != "" {
			*p = ExpandPath(*p)
		}
	}
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			if len(path) == 1 {
				path = home
			} else if path[1] == '/' || path[1] == filepath.Separator {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
