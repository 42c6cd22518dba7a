package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LegacyLogger 舊版 logger（直接輸出到 stderr，用於回退）
type LegacyLogger struct {
	mu    sync.RWMutex
	level Level
	out   io.Writer
	attrs []any
}

// NewLegacyLogger 建立 legacy logger
func NewLegacyLogger() *LegacyLogger {
	return &LegacyLogger{level: LevelInfo, out: os.Stderr}
}

// SetLevel 設定日誌級別
func (l *LegacyLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *LegacyLogger) write(level Level, tag, msg string, args []any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if level < l.level {
		return
	}
	all := append(append([]any(nil), l.attrs...), args...)
	if len(all) == 0 {
		fmt.Fprintf(l.out, "[%s] %s\n", tag, msg)
		return
	}
	fmt.Fprintf(l.out, "[%s] %s %v\n", tag, msg, all)
}

func (l *LegacyLogger) Debug(msg string, args ...any) { l.write(LevelDebug, "DEBUG", msg, args) }
func (l *LegacyLogger) Info(msg string, args ...any)  { l.write(LevelInfo, "INFO", msg, args) }
func (l *LegacyLogger) Warn(msg string, args ...any)  { l.write(LevelWarn, "WARN", msg, args) }
func (l *LegacyLogger) Error(msg string, args ...any) { l.write(LevelError, "ERROR", msg, args) }

// With 回傳帶有額外欄位的 logger
func (l *LegacyLogger) With(args ...any) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &LegacyLogger{
		level: l.level,
		out:   l.out,
		attrs: append(append([]any(nil), l.attrs...), args...),
	}
}

func (l *LegacyLogger) Shutdown() error { return nil }
