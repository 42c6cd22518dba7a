package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter receives progress for the copy phase of a sync run
type Reporter interface {
	// SetTotal sets the number of files and bytes the run will copy
	SetTotal(totalFiles int, totalBytes int64)
	// Start begins tracking a new file copy
	Start(path string, totalBytes int64)
	// Update reports bytes copied so far for the current file
	Update(bytesCopied int64)
	// Complete marks the current copy as done
	Complete()
	// Error reports a failure of the current copy
	Error(err error)
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CurrentFile    string
	CurrentBytes   int64
	CurrentTotal   int64
	FilesCompleted int
	FilesFailed    int
	FilesTotal     int
	BytesCompleted int64
	BytesTotal     int64
	BytesPerSecond float64
	Elapsed        time.Duration
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateProgress
	UpdateComplete
	UpdateError
)

// CallbackReporter implements Reporter with a callback function.
// The callback is always invoked outside the internal lock.
type CallbackReporter struct {
	callback Callback

	mu             sync.Mutex
	current        string
	currentTotal   int64
	currentBytes   int64
	startTime      time.Time
	filesTotal     int
	bytesTotal     int64
	filesCompleted int
	filesFailed    int
	bytesCompleted int64
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback}
}

// SetTotal sets the total number of files and bytes to copy
func (r *CallbackReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesTotal = totalFiles
	r.bytesTotal = totalBytes
}

// Start begins tracking a new file copy
func (r *CallbackReporter) Start(path string, totalBytes int64) {
	r.mu.Lock()
	r.current = path
	r.currentTotal = totalBytes
	r.currentBytes = 0
	r.startTime = time.Now()
	update := r.snapshotLocked(UpdateStart)
	r.mu.Unlock()

	r.emit(update)
}

// Update reports progress on the current copy
func (r *CallbackReporter) Update(bytesCopied int64) {
	r.mu.Lock()
	r.currentBytes = bytesCopied
	update := r.snapshotLocked(UpdateProgress)
	update.BytesCompleted += bytesCopied
	r.mu.Unlock()

	r.emit(update)
}

// Complete marks the current copy as done
func (r *CallbackReporter) Complete() {
	r.mu.Lock()
	r.filesCompleted++
	if r.currentBytes > r.currentTotal {
		r.currentTotal = r.currentBytes
	}
	r.bytesCompleted += r.currentTotal
	r.currentBytes = r.currentTotal
	update := r.snapshotLocked(UpdateComplete)
	r.mu.Unlock()

	r.emit(update)
}

// Error reports a failure of the current copy
func (r *CallbackReporter) Error(err error) {
	r.mu.Lock()
	r.filesFailed++
	update := r.snapshotLocked(UpdateError)
	update.Error = err
	r.mu.Unlock()

	r.emit(update)
}

// snapshotLocked builds an update from the current state; r.mu must be held
func (r *CallbackReporter) snapshotLocked(t UpdateType) Update {
	var elapsed time.Duration
	var bytesPerSecond float64
	if !r.startTime.IsZero() {
		elapsed = time.Since(r.startTime)
		if secs := elapsed.Seconds(); secs > 0 {
			bytesPerSecond = float64(r.currentBytes) / secs
		}
	}

	return Update{
		Type:           t,
		CurrentFile:    r.current,
		CurrentBytes:   r.currentBytes,
		CurrentTotal:   r.currentTotal,
		FilesCompleted: r.filesCompleted,
		FilesFailed:    r.filesFailed,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
		BytesPerSecond: bytesPerSecond,
		Elapsed:        elapsed,
	}
}

func (r *CallbackReporter) emit(update Update) {
	if r.callback != nil {
		r.callback(update)
	}
}

// Reader wraps an io.Reader to report copy progress and stop on cancellation
type Reader struct {
	ctx         context.Context
	reader      io.Reader
	reporter    Reporter
	transferred int64
}

// NewReader creates a new progress-tracking reader.
// Reads fail with ctx.Err() once the context is done.
func NewReader(ctx context.Context, r io.Reader, reporter Reporter) *Reader {
	return &Reader{
		ctx:      ctx,
		reader:   r,
		reporter: reporter,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.reporter != nil {
			pr.reporter.Update(pr.transferred)
		}
	}
	return n, err
}

// Transferred returns the number of bytes read so far
func (pr *Reader) Transferred() int64 {
	return pr.transferred
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) SetTotal(totalFiles int, totalBytes int64) {}
func (NullReporter) Start(path string, totalBytes int64)       {}
func (NullReporter) Update(bytesCopied int64)                  {}
func (NullReporter) Complete()                                 {}
func (NullReporter) Error(err error)                           {}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats bytes per second into human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}
