package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/filesync/internal/state"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync runs, newest first",
		Long: `List recorded sync runs, newest first.
With --src and --dest only runs between that pair are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(a.out, "Run history is disabled (history.enabled: false).")
				return nil
			}

			m, err := state.NewManager(cfg.HistoryDir())
			if err != nil {
				return err
			}
			defer m.Close()

			var runs []state.RunRecord
			if a.opts.src != "" || a.opts.dest != "" {
				src, dest, perr := a.pair(cfg)
				if perr != nil {
					return perr
				}
				runs, err = m.PairHistory(src, dest, limit)
			} else {
				runs, err = m.History(limit)
			}
			if err != nil {
				return err
			}
			printRuns(a, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	a.pairFlags(cmd)
	return cmd
}

func printRuns(a *app, runs []state.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDIRECTION\tSTATUS\tNEW\tMOD\tDEL\tCOPIED\tREMOVED\tFAILED\tDURATION\tPAIR")
	for _, r := range runs {
		status := r.Status
		if r.ScanOnly {
			status += " (scan)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s -> %s\n",
			r.ID,
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			r.Direction,
			status,
			r.New, r.Modified, r.Deleted,
			r.Copied, r.Removed, r.Failed,
			r.Duration().Round(time.Millisecond),
			r.Source, r.Destination,
		)
	}
	w.Flush()
}
