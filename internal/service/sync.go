package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/adapter/local"
	"github.com/Ning0612/filesync/internal/config"
	"github.com/Ning0612/filesync/internal/core/checksum"
	"github.com/Ning0612/filesync/internal/core/diff"
	"github.com/Ning0612/filesync/internal/core/planner"
	"github.com/Ning0612/filesync/internal/core/reconcile"
	"github.com/Ning0612/filesync/internal/core/scanner"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/hashdb"
	"github.com/Ning0612/filesync/internal/lock"
	"github.com/Ning0612/filesync/internal/logger"
	"github.com/Ning0612/filesync/internal/progress"
	"github.com/Ning0612/filesync/internal/state"
)

// Options selects what one Run does
type Options struct {
	// Src and Dest are the physical roots as given on the command line
	Src  string
	Dest string

	Direction domain.Direction

	// ScanOnly reports differences without touching either tree
	ScanOnly bool

	// AssumeYes skips the proceed prompt; deletions are still confirmed
	AssumeYes bool
}

// RootError reports a missing or unusable root directory
type RootError struct {
	Role string
	Path string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("%s folder does not exist: %s", e.Role, e.Path)
}

func (e *RootError) Unwrap() []error {
	return []error{domain.ErrRootNotFound, e.Err}
}

// Report describes a finished run
type Report struct {
	Direction   domain.Direction
	Source      string
	Destination string

	StartTime time.Time
	EndTime   time.Time

	Summary domain.DiffSummary
	Plan    *domain.SyncPlan
	Result  *reconcile.Result

	ScanOnly  bool
	Cancelled bool

	// CacheWarnings holds hash databases that were ignored as corrupt
	CacheWarnings []error
}

// Err returns the joined per-file failures, or nil
func (r *Report) Err() error {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.Err()
}

// Status classifies the run for the history table
func (r *Report) Status(runErr error) string {
	switch {
	case errors.Is(runErr, context.Canceled), r.Cancelled:
		return state.StatusCancelled
	case runErr != nil:
		return state.StatusFailed
	case r.Err() != nil:
		return state.StatusPartial
	default:
		return state.StatusSuccess
	}
}

// SyncService orchestrates sync operations
type SyncService struct {
	config    *config.Config
	fs        afero.Fs
	notifier  domain.Notifier
	confirmer domain.Confirmer
	reporter  progress.Reporter
	history   *state.Manager

	scanner  *scanner.Scanner
	diff     *diff.Engine
	planner  planner.Planner
	executor reconcile.Executor
}

// NewSyncService creates a new sync service
func NewSyncService(cfg *config.Config) (*SyncService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &SyncService{
		config:   cfg,
		fs:       afero.NewOsFs(),
		diff:     diff.NewEngine(),
		planner:  planner.NewDefaultPlanner(),
		executor: reconcile.NewDefaultExecutor(),
	}
	s.SetNotifier(nil)
	return s, nil
}

// SetNotifier sets where user-facing messages go
func (s *SyncService) SetNotifier(n domain.Notifier) {
	if n == nil {
		n = domain.NullNotifier{}
	}
	s.notifier = n

	hasher := checksum.NewHasher(
		checksum.NewCalculator(checksum.Options{BufferSize: s.config.Hash.ChunkSize}),
		s.config.HashAlgorithm(),
	)
	s.scanner = scanner.New(hasher, n, scanner.Options{
		IgnoreDirs: s.config.IgnoreDirs,
		DBFilename: s.config.DBFilename,
		Workers:    s.config.Scan.Workers,
	})
}

// SetConfirmer sets who answers the proceed and delete prompts
func (s *SyncService) SetConfirmer(c domain.Confirmer) {
	s.confirmer = c
}

// SetProgressReporter sets the progress reporter for copies
func (s *SyncService) SetProgressReporter(reporter progress.Reporter) {
	s.reporter = reporter
}

// SetHistory enables recording of runs
func (s *SyncService) SetHistory(m *state.Manager) {
	s.history = m
}

func (s *SyncService) getReporter() progress.Reporter {
	if s.reporter != nil {
		return s.reporter
	}
	return progress.NullReporter{}
}

// openRoot opens a physical root, which must be an existing directory
func (s *SyncService) openRoot(path, role string) (*local.Adapter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &RootError{Role: role, Path: path, Err: err}
	}
	tree, err := local.NewWithFs(s.fs, abs)
	if err != nil {
		return nil, &RootError{Role: role, Path: path, Err: err}
	}
	return tree, nil
}

// CheckRoots reports the first missing root, source before backup
func (s *SyncService) CheckRoots(opts Options) error {
	if _, err := s.openRoot(opts.Src, "Source"); err != nil {
		return err
	}
	_, err := s.openRoot(opts.Dest, "Backup")
	return err
}

// Run performs one backup, restore, or scan.
// Per-file failures do not make Run fail; they surface through Report.Err.
func (s *SyncService) Run(ctx context.Context, opts Options) (report *Report, err error) {
	if opts.Direction == "" {
		opts.Direction = domain.DirectionBackup
	}
	if !opts.Direction.IsValid() {
		return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrConfigInvalid, opts.Direction)
	}

	srcTree, err := s.openRoot(opts.Src, "Source")
	if err != nil {
		return nil, err
	}
	destTree, err := s.openRoot(opts.Dest, "Backup")
	if err != nil {
		return nil, err
	}

	var from, to adapter.Adapter = srcTree, destTree
	if opts.Direction == domain.DirectionRestore {
		from, to = destTree, srcTree
	}

	log := logger.With("direction", string(opts.Direction), "src", srcTree.Root(), "dest", destTree.Root())

	pairLock, err := lock.New(s.config.Lock.Dir, srcTree.Root(), destTree.Root())
	if err != nil {
		return nil, err
	}
	if s.config.Lock.StaleTimeout > 0 {
		pairLock.SetStaleTimeout(s.config.Lock.StaleTimeout)
	}
	label := fmt.Sprintf("%s %s -> %s", opts.Direction, from.Root(), to.Root())
	if err := pairLock.Acquire(label); err != nil {
		log.Error("failed to acquire sync lock", "error", err)
		return nil, err
	}
	defer func() {
		if err := pairLock.Release(); err != nil {
			log.Error("failed to release sync lock", "error", err)
		}
	}()

	report = &Report{
		Direction:   opts.Direction,
		Source:      srcTree.Root(),
		Destination: destTree.Root(),
		StartTime:   time.Now(),
		ScanOnly:    opts.ScanOnly,
	}
	defer func() {
		report.EndTime = time.Now()
		s.record(report, err, log)
	}()

	if opts.Direction == domain.DirectionRestore {
		s.notifier.Notify("[*] Running in RESTORE mode", domain.TierAlways, domain.CategoryWarning)
	}

	fromCache := s.loadCache(ctx, from, report, log)
	toCache := s.loadCache(ctx, to, report, log)

	s.notifier.Notify("[*] Scanning source...", domain.TierAlways, domain.CategoryInfo)
	source, err := s.scanner.Scan(ctx, from, fromCache, "src")
	if err != nil {
		return report, fmt.Errorf("scanning %s: %w", from.Root(), err)
	}

	s.notifier.Notify("[*] Scanning destination...", domain.TierAlways, domain.CategoryInfo)
	destination, err := s.scanner.Scan(ctx, to, toCache, "dest")
	if err != nil {
		return report, fmt.Errorf("scanning %s: %w", to.Root(), err)
	}

	report.Summary = s.diff.Diff(source, destination, opts.Direction)
	s.printSummary(report.Summary)
	log.Info("scan finished",
		"source_files", report.Summary.SourceCount,
		"destination_files", report.Summary.DestinationCount,
		"new", len(report.Summary.New),
		"modified", len(report.Summary.Modified),
		"deleted", len(report.Summary.Deleted),
	)

	if opts.ScanOnly {
		s.notifier.Notify("[=] Scan-only mode: no changes applied.", domain.TierAlways, domain.CategoryWarning)
		return report, nil
	}

	if !opts.AssumeYes {
		proceed, err := s.proceed("[?] Proceed with sync?")
		if err != nil {
			return report, fmt.Errorf("proceed prompt: %w", err)
		}
		if !proceed {
			report.Cancelled = true
			s.notifier.Notify("[=] Sync cancelled.", domain.TierAlways, domain.CategoryWarning)
			return report, nil
		}
	}

	report.Plan = s.planner.Plan(report.Summary, source, destination, opts.Direction)

	result, err := s.executor.Execute(ctx, reconcile.ExecuteInput{
		Plan:            report.Plan,
		Source:          source,
		Destination:     destination,
		Direction:       opts.Direction,
		SourceTree:      from,
		DestinationTree: to,
		Confirmer:       s.confirmer,
		Notifier:        s.notifier,
		Reporter:        s.getReporter(),
	})
	if err != nil {
		return report, err
	}
	report.Result = result

	if err := s.saveCache(ctx, from, fromCache, result.SourceCache, log); err != nil {
		return report, err
	}
	if err := s.saveCache(ctx, to, toCache, result.DestinationCache, log); err != nil {
		return report, err
	}

	if n := len(result.Failures); n > 0 {
		s.notifier.Notify(fmt.Sprintf("[!] %d file operation(s) failed", n), domain.TierAlways, domain.CategoryError)
	}
	s.notifier.Notify("\n[✓] Sync complete. Hash DBs updated.", domain.TierAlways, domain.CategorySuccess)
	return report, nil
}

// loadCache reads the hash database at the tree root. A corrupt database
// is reported and replaced by an empty one.
func (s *SyncService) loadCache(ctx context.Context, tree adapter.Adapter, report *Report, log logger.Logger) hashdb.Cache {
	cache, err := hashdb.Load(ctx, tree, s.config.DBFilename)
	if err != nil {
		report.CacheWarnings = append(report.CacheWarnings, err)
		s.notifier.Notify(fmt.Sprintf("[!] Ignoring unreadable hash DB: %v", err), domain.TierNormal, domain.CategoryWarning)
		log.Warn("hash database ignored", "root", tree.Root(), "error", err)
	}
	return cache
}

// saveCache rewrites the hash database at the tree root unless the loaded
// database already holds exactly the same entries
func (s *SyncService) saveCache(ctx context.Context, tree adapter.Adapter, loaded, cache hashdb.Cache, log logger.Logger) error {
	if len(loaded) > 0 && loaded.Equal(cache) {
		log.Debug("hash database unchanged", "root", tree.Root())
		return nil
	}
	return hashdb.Save(ctx, tree, s.config.DBFilename, cache)
}

func (s *SyncService) confirm(prompt string) (bool, error) {
	if s.confirmer == nil {
		return false, fmt.Errorf("no confirmer configured")
	}
	return s.confirmer.Confirm(prompt)
}

// proceed asks once when the confirmer supports it
func (s *SyncService) proceed(prompt string) (bool, error) {
	if p, ok := s.confirmer.(domain.Proceeder); ok {
		return p.Proceed(prompt)
	}
	return s.confirm(prompt)
}

func (s *SyncService) printSummary(summary domain.DiffSummary) {
	n := s.notifier
	n.Notify("\n=== SCAN SUMMARY ===", domain.TierAlways, domain.CategoryInfo)
	n.Notify(fmt.Sprintf("Source files:      %d", summary.SourceCount), domain.TierAlways, domain.CategoryHighlight)
	n.Notify(fmt.Sprintf("Destination files: %d", summary.DestinationCount), domain.TierAlways, domain.CategoryHighlight)
	n.Notify(fmt.Sprintf("New files:         %d", len(summary.New)), domain.TierAlways, domain.CategorySuccess)
	n.Notify(fmt.Sprintf("Modified files:    %d", len(summary.Modified)), domain.TierAlways, domain.CategoryWarning)
	n.Notify(fmt.Sprintf("Deleted files:     %d", len(summary.Deleted)), domain.TierAlways, domain.CategoryError)
	n.Notify("=====================\n", domain.TierAlways, domain.CategoryInfo)
}

// record stores the run in the history database when one is configured
func (s *SyncService) record(report *Report, runErr error, log logger.Logger) {
	if s.history == nil {
		return
	}

	rec := state.RunRecord{
		Direction:   string(report.Direction),
		Source:      report.Source,
		Destination: report.Destination,
		StartTime:   report.StartTime,
		EndTime:     report.EndTime,
		Status:      report.Status(runErr),
		ScanOnly:    report.ScanOnly,
		New:         len(report.Summary.New),
		Modified:    len(report.Summary.Modified),
		Deleted:     len(report.Summary.Deleted),
	}
	if r := report.Result; r != nil {
		rec.Copied = len(r.Copied)
		rec.Removed = len(r.Deleted)
		rec.Kept = len(r.Kept)
		rec.Failed = len(r.Failures)
	}
	switch {
	case runErr != nil:
		rec.Error = runErr.Error()
	case report.Err() != nil:
		rec.Error = report.Err().Error()
	}

	if _, err := s.history.SaveRun(rec); err != nil {
		log.Warn("failed to record run history", "error", err)
	}
}
