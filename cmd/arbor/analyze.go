package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
)

var (
	flagOut      string
	flagWorkers  int
	flagNoCache  bool
	flagContent  bool
	flagProgress bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Analyze a project and record a snapshot",
	Long:  "Discovers source files under dir (default: current directory), analyzes them in parallel and builds the dependency graph. The result is stored as a snapshot in the cache and optionally written to --out (.json, .yaml or .yml).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagOut, "out", "", "write the full result to this file")
	analyzeCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel workers (default: config or one per CPU)")
	analyzeCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable the analysis cache and snapshots")
	analyzeCmd.Flags().BoolVar(&flagContent, "content", false, "keep file contents in the result")
	analyzeCmd.Flags().BoolVar(&flagProgress, "progress", false, "print progress to stderr")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

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

	var progress chan arbor.Progress
	done := make(chan struct{})
	if flagProgress {
		progress = make(chan arbor.Progress, 16)
		go func() {
			defer close(done)
			for p := range progress {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", p.Current, p.Total, p.CurrentItem)
			}
		}()
	} else {
		close(done)
	}

	res, err := a.AnalyzeDirectory(ctx, a.Root(), progress)
	if progress != nil {
		close(progress)
	}
	<-done
	if err != nil {
		return outputError(cmd, err)
	}

	summary := summarize(res)
	if flagOut != "" {
		if err := res.Save(flagOut); err != nil {
			return outputError(cmd, err)
		}
		summary.Output = flagOut
	}
	if !flagNoCache {
		snap, err := a.SaveSnapshot(res)
		if err != nil {
			return outputError(cmd, err)
		}
		summary.SnapshotID = snap.ID
	}
	summary.DurationMS = time.Since(start).Milliseconds()

	return outputResult(cmd, CLIResult{Command: "analyze", Results: summary})
}

// newAnalyzer builds an Analyzer from the project config and the analyze
// flags. An explicit dir argument overrides the configured root.
func newAnalyzer(cmd *cobra.Command, dir string, args []string) (*arbor.Analyzer, error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Root = dir
	}
	if flagNoCache {
		cfg.CachePath = ""
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	return arbor.New(
		arbor.WithConfig(cfg),
		arbor.WithLogger(logger),
		arbor.WithContent(flagContent),
	)
}

func summarize(res *arbor.AnalysisResult) CLIAnalyzeSummary {
	langs := make(map[string]int)
	for _, fa := range res.FileAnalyses {
		langs[fa.Language]++
	}
	return CLIAnalyzeSummary{
		Root:         res.Root,
		Files:        len(res.FileAnalyses),
		Dependencies: len(res.Dependencies),
		Nodes:        len(res.Graph.Nodes),
		Languages:    langs,
		Cycles:       len(res.Graph.Cycles()),
	}
}

// contextOf returns the command's context, or Background when the command
// runs outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
