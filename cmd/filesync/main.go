package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ning0612/filesync/internal/config"
	"github.com/Ning0612/filesync/internal/console"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/lock"
	"github.com/Ning0612/filesync/internal/logger"
	"github.com/Ning0612/filesync/internal/progress"
	"github.com/Ning0612/filesync/internal/service"
	"github.com/Ning0612/filesync/internal/state"
)

const appName = "filesync"

// version can be set at build time with -ldflags="-X main.version=1.0.0"
var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitPartial = 2
)

const longHelp = `Backup & Restore Tool with local hash DBs.

Each directory keeps a small JSON file (.syncdb.json by default) at its root
mapping relative paths to content hashes. The hashes speed up later scans and
are used to detect new, modified and deleted files.

BACKUP mode (default):
  - --src is scanned, then --dest.
  - Files missing or modified in the destination are copied from the source.
  - Files only in the destination can be deleted (you will be prompted).

RESTORE mode (--restore):
  - --dest is treated as the source of truth.
  - --src is overwritten/restored from the backup.
  - No deletions are performed.`

// partialError marks a run that finished with per-file failures
type partialError struct {
	err error
}

func (e *partialError) Error() string { return e.err.Error() }
func (e *partialError) Unwrap() error { return e.err }

type rootOptions struct {
	configFile string
	src        string
	dest       string
	restore    bool
	scanOnly   bool
	assumeYes  bool
	verbose    int
	noColor    bool
}

// app holds the streams and layered configuration of one invocation
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v    *viper.Viper
	opts rootOptions
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, v: config.NewViper()}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Hash-cached directory backup and restore",
		Long:          longHelp,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.opts.configFile, "config", "", "config file (default: search ., ./configs, user config dir)")
	pf.BoolVar(&a.opts.noColor, "no-color", false, "disable colored output")

	f := cmd.Flags()
	f.StringVar(&a.opts.src, "src", "", "source directory (BACKUP: original data, RESTORE: restore target)")
	f.StringVar(&a.opts.dest, "dest", "", "backup directory (BACKUP: copied to, RESTORE: restored from)")
	f.BoolVar(&a.opts.restore, "restore", false, "restore --src from --dest; never deletes")
	f.BoolVar(&a.opts.scanOnly, "scan", false, "only list new/modified/deleted files")
	f.BoolVarP(&a.opts.assumeYes, "yes", "y", false, "skip the proceed prompt (deletions are still confirmed)")
	f.CountVarP(&a.opts.verbose, "verbose", "v", "-v shows copied files, -vv every scanned file and warnings on stderr")
	f.Int("workers", 1, "number of files hashed in parallel")
	f.String("algorithm", "sha256", "content hash: sha256 or blake2b")

	_ = a.v.BindPFlag("scan.workers", f.Lookup("workers"))
	_ = a.v.BindPFlag("hash.algorithm", f.Lookup("algorithm"))

	cmd.AddCommand(a.historyCommand(), a.unlockCommand())
	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.v, a.opts.configFile)
}

// pairFlags registers --src and --dest on a subcommand
func (a *app) pairFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.opts.src, "src", "", "source directory (default: default_src)")
	cmd.Flags().StringVar(&a.opts.dest, "dest", "", "backup directory")
}

// pair resolves --src and --dest the way a sync run records them
func (a *app) pair(cfg *config.Config) (src, dest string, err error) {
	src = a.opts.src
	if src == "" {
		src = cfg.DefaultSrc
	}
	if src == "" {
		return "", "", fmt.Errorf("--src is required when default_src is not configured")
	}
	if a.opts.dest == "" {
		return "", "", fmt.Errorf("--dest is required")
	}
	if src, err = filepath.Abs(src); err != nil {
		return "", "", err
	}
	if dest, err = filepath.Abs(a.opts.dest); err != nil {
		return "", "", err
	}
	return src, dest, nil
}

func (a *app) notifier() *console.Notifier {
	n := console.NewNotifier(a.out, a.opts.verbose)
	if a.opts.noColor {
		n.SetColor(false)
	}
	return n
}

// initLogging starts the rotating file log and, at -vv, a stderr sink for warnings
func (a *app) initLogging(cfg *config.Config, verbosity domain.Tier) {
	path := cfg.Log.File
	if path == "" {
		path = logger.DefaultFilePath()
	}

	lc := logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		File: logger.FileConfig{
			Enabled:    true,
			Path:       path,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
		},
	}
	if verbosity >= domain.TierDetailed {
		lc.Sinks = append(lc.Sinks, logger.Sink{Writer: a.errOut, MinLevel: logger.LevelWarn})
	}

	if err := logger.Init(lc); err != nil {
		fmt.Fprintf(a.errOut, "warning: logging disabled: %v\n", err)
	}
}

func (a *app) runSync(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	notifier := a.notifier()
	a.initLogging(cfg, notifier.Verbosity())
	defer logger.Shutdown()

	src, dest, err := a.pair(cfg)
	if err != nil {
		return err
	}

	opts := service.Options{
		Src:       src,
		Dest:      dest,
		Direction: domain.DirectionBackup,
		ScanOnly:  a.opts.scanOnly,
		AssumeYes: a.opts.assumeYes,
	}
	if a.opts.restore {
		opts.Direction = domain.DirectionRestore
	}

	svc, err := service.NewSyncService(cfg)
	if err != nil {
		return err
	}
	if err := svc.CheckRoots(opts); err != nil {
		return err
	}

	var history *state.Manager
	if cfg.History.Enabled {
		if history, err = state.NewManager(cfg.HistoryDir()); err != nil {
			logger.Get().Warn("run history disabled", "error", err)
			history = nil
		} else {
			defer history.Close()
			svc.SetHistory(history)
		}
	}

	if opts.Direction == domain.DirectionRestore {
		notifier.Bold(fmt.Sprintf("[=] Restoring from backup: %s\n  -> to source: %s\n", opts.Dest, opts.Src))
	} else {
		notifier.Bold(fmt.Sprintf("[=] Backing up from source: %s\n  -> to backup: %s\n", opts.Src, opts.Dest))
	}
	if history != nil {
		announceLastSuccess(history, src, dest, notifier)
	}

	svc.SetNotifier(notifier)
	svc.SetConfirmer(console.NewConfirmer(a.in, a.out))
	svc.SetProgressReporter(progress.NewCallbackReporter(logTransfer))

	report, err := svc.Run(ctx, opts)
	if err != nil {
		return err
	}
	if failures := report.Err(); failures != nil {
		return &partialError{err: failures}
	}
	return nil
}

// announceLastSuccess shows when the pair last synced cleanly
func announceLastSuccess(history *state.Manager, src, dest string, n domain.Notifier) {
	last, err := history.LastSuccess(src, dest)
	if err != nil {
		logger.Get().Warn("failed to read run history", "error", err)
		return
	}
	if last == nil {
		n.Notify("[=] No previous successful sync for this pair.", domain.TierNormal, domain.CategoryInfo)
		return
	}
	n.Notify(fmt.Sprintf("[=] Last successful %s: %s", last.Direction, last.EndTime.Local().Format("2006-01-02 15:04:05")),
		domain.TierNormal, domain.CategoryInfo)
}

// logTransfer records finished and failed copies in the diagnostic log
func logTransfer(u progress.Update) {
	switch u.Type {
	case progress.UpdateComplete:
		logger.Get().Debug("copy finished",
			"file", u.CurrentFile,
			"size", progress.FormatBytes(u.CurrentTotal),
			"speed", progress.FormatSpeed(u.BytesPerSecond),
			"files_done", u.FilesCompleted,
			"files_total", u.FilesTotal,
		)
	case progress.UpdateError:
		logger.Get().Warn("copy failed", "file", u.CurrentFile, "error", u.Error)
	}
}

// exitCode prints err for the user and maps it to a process status
func (a *app) exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var partial *partialError
	if errors.As(err, &partial) {
		return exitPartial
	}

	var rootErr *service.RootError
	if errors.As(err, &rootErr) {
		a.notifier().Notify("[!] "+rootErr.Error(), domain.TierAlways, domain.CategoryError)
		return exitFailure
	}

	if lock.IsLockError(err) {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		fmt.Fprintf(a.errOut, "If no other sync is running, clear the lock with '%s unlock --force --src <dir> --dest <dir>'.\n", appName)
		return exitFailure
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.errOut, "interrupted")
		return exitFailure
	}

	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return exitFailure
}

func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := newApp(in, out, errOut)
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return a.exitCode(cmd.ExecuteContext(ctx))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
