package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/watch"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-analyze a project whenever its files change",
	Long:  "Analyzes dir, then watches it and re-analyzes after supported files change. Every run prints a summary and, unless --no-cache is set, records a snapshot. Stop with Ctrl-C.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before a burst of changes triggers a run")
	watchCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable the analysis cache and snapshots")
	watchCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel workers (default: config or one per CPU)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, err)
	}
	a, err := newAnalyzer(cmd, dir, args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()

	err = a.Watch(ctx, a.Root(), flagDebounce, func(res *arbor.AnalysisResult, changed []string, err error) {
		if err != nil {
			logger.Error("analysis failed", "err", err)
			return
		}
		summary := summarize(res)
		if !flagNoCache {
			snap, err := a.SaveSnapshot(res)
			if err != nil {
				logger.Error("save snapshot", "err", err)
			} else {
				summary.SnapshotID = snap.ID
			}
		}
		if len(changed) > 0 {
			logger.Info("re-analyzed", "changed", len(changed), "files", summary.Files)
		}
		if err := outputResult(cmd, CLIResult{Command: "watch", Results: summary}); err != nil {
			logger.Error("write result", "err", err)
		}
	})
	if err != nil {
		return outputError(cmd, fmt.Errorf("watch %s: %w", dir, err))
	}
	return nil
}
