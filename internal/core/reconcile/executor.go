package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/hashdb"
	"github.com/Ning0612/filesync/internal/logger"
	"github.com/Ning0612/filesync/internal/progress"
)

// Operation names recorded in FileError
const (
	OpCopy   = "copy"
	OpDelete = "delete"
)

// FileError records a single per-file failure
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ExecuteInput carries everything one reconciliation needs.
// Source and Destination are always the logical sides for Direction.
type ExecuteInput struct {
	Plan        *domain.SyncPlan
	Source      domain.ScanResult
	Destination domain.ScanResult
	Direction   domain.Direction

	SourceTree      adapter.Adapter
	DestinationTree adapter.Adapter

	Confirmer domain.Confirmer
	Notifier  domain.Notifier
	Reporter  progress.Reporter
}

// Result is the outcome of an executed plan
type Result struct {
	Copied  []string
	Deleted []string
	Kept    []string

	Failures []*FileError

	// SourceCache and DestinationCache replace the caches at the
	// logical source and destination roots
	SourceCache      hashdb.Cache
	DestinationCache hashdb.Cache
}

// Err joins all per-file failures, or returns nil
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Executor applies a sync plan to two trees
type Executor interface {
	Execute(ctx context.Context, in ExecuteInput) (*Result, error)
}

// DefaultExecutor copies sequentially and confirms every deletion
type DefaultExecutor struct{}

// NewDefaultExecutor creates a new executor
func NewDefaultExecutor() *DefaultExecutor {
	return &DefaultExecutor{}
}

// Execute runs the plan. Per-file failures are collected in the result;
// only context cancellation stops the run early, in which case the
// returned error is ctx.Err() and the caches must not be saved.
func (e *DefaultExecutor) Execute(ctx context.Context, in ExecuteInput) (*Result, error) {
	if in.Plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}
	notifier := in.Notifier
	if notifier == nil {
		notifier = domain.NullNotifier{}
	}
	reporter := in.Reporter
	if reporter == nil {
		reporter = progress.NullReporter{}
	}
	log := logger.With("direction", string(in.Direction))

	result := &Result{
		SourceCache:      hashdb.New(),
		DestinationCache: hashdb.New(),
	}
	for path, entry := range in.Source {
		result.SourceCache[path] = entry.Hash
		result.DestinationCache[path] = entry.Hash
	}

	reporter.SetTotal(in.Plan.Stats.FilesToCopy, in.Plan.Stats.BytesToCopy)

	for _, action := range in.Plan.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch action.Type {
		case domain.ActionCopy:
			written, err := e.copyFile(ctx, in, action, reporter)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				reporter.Error(err)
				delete(result.DestinationCache, action.Path)
				result.Failures = append(result.Failures, &FileError{Path: action.Path, Op: OpCopy, Err: err})
				notifier.Notify(fmt.Sprintf("[!] Error copying %s: %v", in.SourceTree.Abs(action.Path), err), domain.TierAlways, domain.CategoryError)
				log.Error("copy failed", "path", action.Path, "error", err)
				continue
			}
			reporter.Complete()
			result.Copied = append(result.Copied, action.Path)
			notifier.Notify(fmt.Sprintf("[+] Copied: %s -> %s",
				in.SourceTree.Abs(action.Path), in.DestinationTree.Abs(action.Path)), domain.TierNormal, domain.CategorySuccess)
			log.Debug("copied", "path", action.Path, "reason", action.Reason, "bytes", written)

		case domain.ActionDelete:
			if !in.Direction.AllowsDelete() {
				log.Warn("delete action ignored", "path", action.Path)
				continue
			}
			e.deleteFile(ctx, in, action, result, notifier, log)

		default:
			log.Warn("unknown action type", "type", action.Type, "path", action.Path)
		}
	}

	log.Info("plan executed",
		"copied", len(result.Copied),
		"deleted", len(result.Deleted),
		"kept", len(result.Kept),
		"failed", len(result.Failures),
	)
	return result, nil
}

// copyFile streams one file from the logical source to the logical
// destination, carrying its permission bits and modification time.
// It returns the number of bytes written.
func (e *DefaultExecutor) copyFile(ctx context.Context, in ExecuteInput, action domain.SyncAction, reporter progress.Reporter) (int64, error) {
	info, err := in.SourceTree.Stat(ctx, action.Path)
	if err != nil {
		return 0, err
	}
	reporter.Start(action.Path, info.Size)

	reader, err := in.SourceTree.Read(ctx, action.Path)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tracked := progress.NewReader(ctx, reader, reporter)
	if err := in.DestinationTree.Write(ctx, action.Path, tracked, &info); err != nil {
		return tracked.Transferred(), err
	}
	return tracked.Transferred(), nil
}

// deleteFile asks before removing a destination-only file
func (e *DefaultExecutor) deleteFile(ctx context.Context, in ExecuteInput, action domain.SyncAction, result *Result, notifier domain.Notifier, log logger.Logger) {
	absPath := in.DestinationTree.Abs(action.Path)

	if in.Confirmer == nil {
		result.Kept = append(result.Kept, action.Path)
		notifier.Notify(fmt.Sprintf("[=] Kept: %s", absPath), domain.TierAlways, domain.CategoryWarning)
		return
	}

	ok, err := in.Confirmer.Confirm(fmt.Sprintf("[?] File only in destination: %s. Delete it?", absPath))
	if err != nil {
		result.Kept = append(result.Kept, action.Path)
		result.Failures = append(result.Failures, &FileError{Path: action.Path, Op: OpDelete, Err: err})
		notifier.Notify(fmt.Sprintf("[=] Kept: %s (%v)", absPath, err), domain.TierAlways, domain.CategoryWarning)
		log.Warn("delete confirmation failed", "path", action.Path, "error", err)
		return
	}
	if !ok {
		result.Kept = append(result.Kept, action.Path)
		notifier.Notify("[=] Kept", domain.TierAlways, domain.CategoryWarning)
		return
	}

	if err := in.DestinationTree.Delete(ctx, action.Path); err != nil {
		result.Failures = append(result.Failures, &FileError{Path: action.Path, Op: OpDelete, Err: err})
		notifier.Notify(fmt.Sprintf("[!] Error deleting %s: %v", absPath, err), domain.TierAlways, domain.CategoryError)
		log.Error("delete failed", "path", action.Path, "error", err)
		return
	}
	result.Deleted = append(result.Deleted, action.Path)
	notifier.Notify(fmt.Sprintf("[-] Deleted: %s", absPath), domain.TierAlways, domain.CategoryError)
	log.Debug("deleted", "path", action.Path)
}
