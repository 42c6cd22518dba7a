package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Logger is the diagnostic log used across filesync.
// Key-value args follow log/slog conventions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Shutdown flushes and closes the writers the logger owns
	Shutdown() error
}

// Level is a slog level; only the four named ones are configurable
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps a config value to a Level, case-insensitively.
// "warning" is accepted; anything unknown means info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format 日誌格式
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat returns FormatJSON for "json" and FormatText otherwise
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Config describes every destination of one logger
type Config struct {
	// Level and Format apply to the rotating log file
	Level  Level
	Format Format
	File   FileConfig

	// Sinks are extra destinations, each with its own threshold
	Sinks []Sink
}

// Sink is an extra log destination such as stderr at -vv or a test buffer
type Sink struct {
	Writer   io.Writer
	MinLevel Level
}

// FileConfig is the lumberjack rotation setup for the log file
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool // gzip rotated files
}
