package arbor

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/arbor/internal/watch"
)

// Watch analyzes dir, then re-analyzes it whenever supported files change,
// until ctx is done. Each run is passed to fn together with the files that
// triggered it (nil for the initial run). Watcher errors reach fn with a nil
// result. With the cache enabled only the changed files are parsed again,
// unless files were added, removed or a manifest changed.
func (a *Analyzer) Watch(ctx context.Context, dir string, debounce time.Duration, fn func(res *AnalysisResult, changed []string, err error)) error {
	if dir == "" {
		dir = a.root
	}
	res, err := a.AnalyzeDirectory(ctx, dir, nil)
	if err != nil {
		return err
	}
	fn(res, nil, nil)

	changes := make(chan []string, 1)
	watchErrs := make(chan error, 1)
	w, err := watch.New(dir, func(files []string) {
		select {
		case changes <- files:
		case <-ctx.Done():
		}
	},
		watch.WithDebounce(debounce),
		watch.WithFilter(a.registry.IsSupported),
		watch.WithLogger(a.logger),
		watch.WithOnError(func(err error) {
			select {
			case watchErrs <- err:
			default:
				a.logger.Warn("watch error dropped", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("arbor: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-watchErrs:
			fn(nil, nil, fmt.Errorf("arbor: watch: %w", err))
		case files := <-changes:
			a.logger.Info("files changed", "count", len(files))
			if a.resolver != nil {
				a.resolver.Reset()
			}
			res, err := a.AnalyzeDirectory(ctx, dir, nil)
			if ctx.Err() != nil {
				return <-done
			}
			fn(res, files, err)
		}
	}
}
