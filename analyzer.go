package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/graph"
	"github.com/jward/arbor/internal/model"
	"github.com/jward/arbor/internal/project"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/rust"
	"github.com/jward/arbor/internal/script"
	"github.com/jward/arbor/internal/store"
)

// Analyzer orchestrates a batch analysis: analyzer dispatch, the worker pool,
// the content-hash cache, progress reporting and result assembly.
type Analyzer struct {
	root        string
	registry    *Registry
	workers     int
	logger      *slog.Logger
	cachePath   string
	keepContent bool
	extensions  []string
	exclude     []string
	scripts     []config.Script

	store    *store.Store
	resolver *resolve.Resolver
	closers  []func()
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRoot sets the project root. References are resolved inside it and
// AnalyzeDirectory defaults to it. Defaults to the working directory.
func WithRoot(dir string) Option {
	return func(a *Analyzer) {
		a.root = dir
	}
}

// WithAnalyzers replaces the default analyzer set. Scripted analyzers from
// WithConfig are still registered after these.
func WithAnalyzers(analyzers ...LanguageAnalyzer) Option {
	return func(a *Analyzer) {
		a.registry = NewRegistry(analyzers...)
	}
}

// WithWorkers bounds the number of files analyzed concurrently. Values below
// 1 mean one worker per CPU; 1 analyzes files sequentially.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithCache enables the SQLite analysis cache at path. An empty path disables
// it.
func WithCache(path string) Option {
	return func(a *Analyzer) {
		a.cachePath = path
	}
}

// WithContent keeps each file's source text in its FileAnalysis. Off by
// default to keep results small.
func WithContent(keep bool) Option {
	return func(a *Analyzer) {
		a.keepContent = keep
	}
}

// WithConfig applies a project configuration: root, workers, discovery
// filters, cache path and scripted analyzers. Options after it override its
// settings.
func WithConfig(cfg *config.Config) Option {
	return func(a *Analyzer) {
		a.root = cfg.Root
		a.workers = cfg.Workers
		a.extensions = cfg.Extensions()
		a.exclude = cfg.ExcludePatterns
		a.cachePath = cfg.CachePath
		a.scripts = cfg.Scripts
	}
}

// New creates an Analyzer. Unless WithAnalyzers is given, the registry holds
// the Rust analyzer with a resolver rooted at the project root.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		root:   ".",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	root, err := filepath.Abs(a.root)
	if err != nil {
		return nil, fmt.Errorf("arbor: resolve root: %w", err)
	}
	a.root = root
	if a.workers < 1 {
		a.workers = runtime.NumCPU()
	}

	if a.registry == nil {
		resolver, err := resolve.New(root)
		if err != nil {
			return nil, fmt.Errorf("arbor: create resolver: %w", err)
		}
		ra, err := rust.New(resolver)
		if err != nil {
			return nil, fmt.Errorf("arbor: create rust analyzer: %w", err)
		}
		a.resolver = resolver
		a.closers = append(a.closers, ra.Close)
		a.registry = NewRegistry(ra)
	}

	for _, s := range a.scripts {
		sa, err := script.New(script.Config{
			Language:   s.Language,
			Extensions: s.Extensions,
			Grammar:    s.Grammar,
			Path:       s.Path,
		}, script.WithLogger(a.logger))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("arbor: %w", err)
		}
		a.registry.Register(sa)
	}

	if a.cachePath != "" {
		s, err := store.Open(a.cachePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("arbor: open cache: %w", err)
		}
		a.store = s
	}
	return a, nil
}

// Close releases the analyzers and the cache.
func (a *Analyzer) Close() error {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

// Root returns the absolute project root.
func (a *Analyzer) Root() string { return a.root }

// Registry returns the analyzer registry.
func (a *Analyzer) Registry() *Registry { return a.registry }

// fileOutcome is what one worker produced for one input path.
type fileOutcome struct {
	analysis *FileAnalysis
	deps     []Dependency
	cached   bool
	skipped  bool
}

// AnalyzeFiles analyzes paths and assembles the result. Files without an
// analyzer, and files that fail to read or parse, are logged and skipped.
// Results are in input order regardless of the worker count. Relative paths
// are made absolute first.
//
// With the cache enabled, a file is reused only when both its content and
// the project layout (source files and manifests) are unchanged.
//
// When progress is non-nil, one event per path is sent in input order before
// the file is dispatched. Sends block until the receiver is ready; a closed
// channel is logged and otherwise ignored. Cancelling ctx stops dispatch;
// files already dispatched finish and the context error is returned.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, progress chan<- Progress) (*AnalysisResult, error) {
	start := time.Now()
	paths = absPaths(paths)
	a.logger.Info("analysis started", "files", len(paths), "workers", a.workers)

	var (
		batch  *store.BatchedStore
		layout string
	)
	if a.store != nil {
		var err error
		if layout, err = a.layoutFingerprint(ctx, paths); err != nil {
			a.logger.Warn("cache disabled for this run", "error", err)
		} else {
			batch = store.NewBatchedStore(a.store)
		}
	}

	outcomes := make([]fileOutcome, len(paths))
	var g errgroup.Group
	g.SetLimit(a.workers)

	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		a.sendProgress(ctx, progress, Progress{
			Current:     i + 1,
			Total:       len(paths),
			CurrentItem: path,
			Message:     "Analyzing " + path,
		})
		g.Go(func() error {
			outcomes[i] = a.analyzeFile(ctx, path, batch, layout)
			return nil
		})
	}
	_ = g.Wait()

	if batch != nil {
		a.logger.Debug("committing cache", "writes", batch.Len())
		if err := batch.Commit(); err != nil {
			a.logger.Warn("cache commit failed", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("arbor: analysis interrupted: %w", err)
	}

	res := &AnalysisResult{
		FileAnalyses: []FileAnalysis{},
		Dependencies: []Dependency{},
		Root:         a.root,
		CreatedAt:    time.Now().UTC(),
	}
	var cached, skipped int
	for _, o := range outcomes {
		if o.skipped {
			skipped++
			continue
		}
		if o.cached {
			cached++
		}
		res.FileAnalyses = append(res.FileAnalyses, *o.analysis)
		res.Dependencies = append(res.Dependencies, o.deps...)
	}
	res.Graph = graph.New(res.Dependencies)

	a.logger.Info("analysis complete",
		"files", len(res.FileAnalyses),
		"skipped", skipped,
		"cached", cached,
		"dependencies", len(res.Dependencies),
		"duration", time.Since(start))
	return res, nil
}

// AnalyzeDirectory discovers the supported files under dir and analyzes
// them. An empty dir means the project root. The result carries the
// project structure of dir.
func (a *Analyzer) AnalyzeDirectory(ctx context.Context, dir string, progress chan<- Progress) (*AnalysisResult, error) {
	if dir == "" {
		dir = a.root
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("arbor: resolve directory: %w", err)
	}
	paths, err := a.Discover(ctx, abs)
	if err != nil {
		return nil, err
	}
	res, err := a.AnalyzeFiles(ctx, paths, progress)
	if err != nil {
		return nil, err
	}
	res.Root = abs
	res.Structure = project.BuildStructure(abs, paths, a.languageOf)
	a.pruneCache(abs, paths)
	return res, nil
}

// Discover lists the files under dir that some analyzer supports, honoring
// the configured extension and exclude filters.
func (a *Analyzer) Discover(ctx context.Context, dir string) ([]string, error) {
	exts := a.extensions
	if len(exts) == 0 {
		exts = a.registry.Extensions()
	}
	paths, err := project.Discover(ctx, dir, project.Filter{Extensions: exts, Exclude: a.exclude})
	if err != nil {
		return nil, fmt.Errorf("arbor: discover %s: %w", dir, err)
	}
	return paths, nil
}

// Analyze analyzes a single file without the cache.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*FileAnalysis, []Dependency, error) {
	la, ok := a.registry.AnalyzerFor(path)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoAnalyzer, path)
	}
	fa, deps, err := run(ctx, la, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("arbor: analyze %s: %w", path, err)
	}
	if !a.keepContent {
		fa.Content = nil
	}
	return fa, deps, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string, batch *store.BatchedStore, layout string) fileOutcome {
	la, ok := a.registry.AnalyzerFor(path)
	if !ok {
		a.logger.Debug("no analyzer for file", "path", path)
		return fileOutcome{skipped: true}
	}
	log := a.logger.With("path", path, "language", la.LanguageName())

	var (
		content []byte
		hash    string
	)
	if batch != nil {
		var err error
		content, err = os.ReadFile(path)
		if err != nil {
			log.Warn("skipping file", "error", err)
			return fileOutcome{skipped: true}
		}
		hash = store.ContentHash(content) + "." + layout
		f, err := batch.Lookup(path, hash)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		} else if f != nil && f.Language == la.LanguageName() {
			log.Debug("cache hit")
			if a.keepContent {
				f.Analysis.Content = model.Ptr(string(content))
			}
			return fileOutcome{analysis: f.Analysis, deps: nonNil(f.Dependencies), cached: true}
		}
	}

	log.Debug("analyzing file")
	fa, deps, err := run(ctx, la, path, content)
	if err != nil {
		log.Warn("skipping file", "error", err)
		return fileOutcome{skipped: true}
	}

	if batch != nil {
		stored := *fa
		stored.Content = nil
		batch.Put(&store.File{
			Path:         path,
			Language:     la.LanguageName(),
			Hash:         hash,
			Analysis:     &stored,
			Dependencies: deps,
		})
	}
	if !a.keepContent {
		fa.Content = nil
	}
	return fileOutcome{analysis: fa, deps: deps}
}

// run invokes la the cheapest way it supports: from content already read,
// from one parse, or through the two contract calls.
func run(ctx context.Context, la LanguageAnalyzer, path string, content []byte) (*FileAnalysis, []Dependency, error) {
	var (
		fa   *FileAnalysis
		deps []Dependency
		err  error
	)
	switch x := la.(type) {
	case SourceAnalyzer:
		if content == nil {
			if content, err = os.ReadFile(path); err != nil {
				return nil, nil, err
			}
		}
		fa, deps, err = x.AnalyzeSource(ctx, path, content)
	case FileDependencyAnalyzer:
		fa, deps, err = x.Analyze(ctx, path)
	default:
		fa, err = la.AnalyzeFile(ctx, path)
		if err == nil {
			deps, err = la.ExtractDependencies(ctx, path)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if fa == nil {
		return nil, nil, errors.New("analyzer returned no analysis")
	}
	return fa, nonNil(deps), nil
}

// sendProgress delivers p, blocking until the receiver takes it or ctx is
// done. Sending on a closed channel is logged, not fatal.
func (a *Analyzer) sendProgress(ctx context.Context, ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("progress update dropped", "item", p.CurrentItem, "reason", r)
		}
	}()
	select {
	case ch <- p:
	case <-ctx.Done():
		a.logger.Debug("progress update dropped", "item", p.CurrentItem, "reason", ctx.Err())
	}
}

func (a *Analyzer) languageOf(path string) string {
	if la, ok := a.registry.AnalyzerFor(path); ok {
		return la.LanguageName()
	}
	return ""
}

// absPaths returns paths made absolute and clean, so dependency sources
// share a namespace with the absolute targets the resolvers produce.
func absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out[i] = filepath.Clean(p)
	}
	return out
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
