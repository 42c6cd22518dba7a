package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/filesync/internal/domain"
)

const (
	// DefaultStaleTimeout is how long a lock from another host is honored
	DefaultStaleTimeout = 30 * time.Minute

	lockPrefix = "filesync-"
	lockSuffix = ".lock"
)

// Info describes the lock holder
type Info struct {
	PID         int       `json:"pid"`
	Hostname    string    `json:"hostname"`
	StartTime   time.Time `json:"start_time"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Label       string    `json:"label,omitempty"`
}

// FileLock guards one src/dest pair against concurrent runs.
// The lock file lives in a shared directory, never inside the synced trees.
type FileLock struct {
	lockPath     string
	source       string
	destination  string
	staleTimeout time.Duration
	info         *Info
}

// DefaultDir returns the lock directory used when none is configured
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(configDir, "filesync", "locks"), nil
}

// FileName returns the lock file name for a src/dest pair.
// The order of the pair does not matter, so a backup and a restore of
// the same two trees exclude each other.
func FileName(src, dest string) string {
	a, b := filepath.Clean(src), filepath.Clean(dest)
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return lockPrefix + hex.EncodeToString(sum[:8]) + lockSuffix
}

// New creates a lock for the src/dest pair in lockDir.
// An empty lockDir uses DefaultDir.
func New(lockDir, src, dest string) (*FileLock, error) {
	if lockDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		lockDir = dir
	}

	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	return &FileLock{
		lockPath:     filepath.Join(lockDir, FileName(src, dest)),
		source:       src,
		destination:  dest,
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.lockPath
}

// SetStaleTimeout sets the duration after which a foreign-host lock is stale
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire takes the lock, labelling it with what the run is doing.
// Acquiring again from the same instance only updates the label.
func (l *FileLock) Acquire(label string) error {
	if l.info != nil {
		existing, err := l.readInfo()
		if err == nil && l.heldByThisInstance(existing) {
			existing.Label = label
			if err := l.writeInfo(existing); err != nil {
				return err
			}
			l.info.Label = label
			return nil
		}
	}

	existing, err := l.readInfo()
	if err == nil {
		if !l.isStale(existing) {
			return &Error{Holder: existing, Reason: "another sync is running"}
		}
		if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := &Info{
		PID:         os.Getpid(),
		Hostname:    hostname,
		StartTime:   time.Now(),
		Source:      l.source,
		Destination: l.destination,
		Label:       label,
	}

	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, readErr := l.readInfo()
			if readErr != nil {
				return fmt.Errorf("%w: %v", domain.ErrSyncInProgress, err)
			}
			return &Error{Holder: holder, Reason: "lock taken during acquisition"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release drops the lock if this instance still owns it
func (l *FileLock) Release() error {
	if l.info == nil {
		return nil
	}

	existing, err := l.readInfo()
	if err != nil {
		l.info = nil
		return nil
	}

	if !l.heldByThisInstance(existing) {
		l.info = nil
		return fmt.Errorf("lock was taken over by PID %d", existing.PID)
	}

	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	l.info = nil
	return nil
}

// IsLocked reports whether a live lock exists for the pair
func (l *FileLock) IsLocked() bool {
	info, err := l.readInfo()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// Holder returns the current live lock holder
func (l *FileLock) Holder() (*Info, error) {
	info, err := l.readInfo()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, fmt.Errorf("lock is stale")
	}
	return info, nil
}

// ForceRelease removes the lock file regardless of owner
func (l *FileLock) ForceRelease() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.info = nil
	return nil
}

func (l *FileLock) readInfo() (*Info, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &info, nil
}

func (l *FileLock) writeInfo(info *Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.lockPath, data, 0644)
}

// isStale treats a same-host lock as stale only when its process is gone.
// Locks from other hosts expire after staleTimeout.
func (l *FileLock) isStale(info *Info) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > l.staleTimeout
}

func (l *FileLock) heldByThisInstance(info *Info) bool {
	if l.info == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		l.info.StartTime.Equal(info.StartTime) &&
		l.info.Label == info.Label
}

// Error reports a lock held by someone else. It matches domain.ErrSyncInProgress.
type Error struct {
	Holder *Info
	Reason string
}

func (e *Error) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (PID %d on %s since %s: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Label,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

func (e *Error) Unwrap() error {
	return domain.ErrSyncInProgress
}

// IsLockError checks if an error is a lock contention error
func IsLockError(err error) bool {
	var le *Error
	return errors.As(err, &le)
}
