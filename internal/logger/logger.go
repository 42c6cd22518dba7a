package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LegacyEnv switches Init to the plain stderr logger when set to "true"
const LegacyEnv = "FILESYNC_USE_LEGACY_LOGGER"

var (
	mu      sync.RWMutex
	current Logger // nil until Init
)

// Init installs the process-wide logger. It fails if one is already
// installed; call Shutdown first.
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return fmt.Errorf("logger already initialized; call Shutdown() before re-initializing")
	}

	if os.Getenv(LegacyEnv) == "true" {
		legacy := NewLegacyLogger()
		legacy.SetLevel(config.Level)
		current = legacy
		return nil
	}

	l, err := NewSlogLogger(config)
	if err != nil {
		return fmt.Errorf("failed to create slog logger: %w", err)
	}
	current = l
	return nil
}

// Get returns the installed logger, or a no-op logger before Init
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()

	if current == nil {
		return nopLogger{}
	}
	return current
}

// With 建立帶 context 的子 logger
func With(args ...any) Logger {
	return Get().With(args...)
}

// Shutdown uninstalls the logger and closes its writers.
// Later Get calls return the no-op logger.
func Shutdown() error {
	mu.Lock()
	l := current
	current = nil
	mu.Unlock()

	if l == nil {
		return nil
	}
	return l.Shutdown()
}

// DefaultFilePath returns <user config dir>/filesync/filesync.log
func DefaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "filesync", "filesync.log")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }
func (nopLogger) Shutdown() error      { return nil }
