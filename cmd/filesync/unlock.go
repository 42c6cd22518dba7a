package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/filesync/internal/lock"
	"github.com/Ning0612/filesync/internal/logger"
)

func (a *app) unlockCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Remove the lock left behind for a src/dest pair",
		Long: `Remove the lock file guarding a src/dest pair.
Stale locks are removed directly. A lock whose holder still looks alive
is only removed with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.initLogging(cfg, a.notifier().Verbosity())
			defer logger.Shutdown()

			src, dest, err := a.pair(cfg)
			if err != nil {
				return err
			}

			pairLock, err := lock.New(cfg.Lock.Dir, src, dest)
			if err != nil {
				return err
			}
			if cfg.Lock.StaleTimeout > 0 {
				pairLock.SetStaleTimeout(cfg.Lock.StaleTimeout)
			}

			if _, err := os.Stat(pairLock.Path()); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(a.out, "No lock held for this pair.")
				return nil
			}

			if pairLock.IsLocked() {
				holder, err := pairLock.Holder()
				if err != nil {
					return err
				}
				desc := fmt.Sprintf("PID %d on %s since %s", holder.PID, holder.Hostname, holder.StartTime.Local().Format(time.DateTime))
				if !force {
					return fmt.Errorf("pair is locked by %s; pass --force to remove the lock", desc)
				}
				fmt.Fprintf(a.out, "Removing lock held by %s\n", desc)
			}

			if err := pairLock.ForceRelease(); err != nil {
				return err
			}
			logger.Get().Info("lock removed", "path", pairLock.Path(), "src", src, "dest", dest)
			fmt.Fprintf(a.out, "Lock removed: %s\n", pairLock.Path())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove the lock even if its holder may still be running")
	a.pairFlags(cmd)
	return cmd
}
