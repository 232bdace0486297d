// Package script runs language analyzers written as Risor scripts. A script
// parses its file with the bundled tree-sitter grammars and reports what it
// finds through emit host functions, so new languages plug into the analyzer
// registry without Go code.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/metrics"
	"github.com/jward/arbor/internal/model"
)

// Config describes one scripted analyzer.
type Config struct {
	// Language is the name reported in FileAnalysis.Language.
	Language string
	// Extensions without the leading dot. Empty means the grammar's defaults.
	Extensions []string
	// Grammar names a bundled tree-sitter grammar, see Grammars.
	Grammar string
	// Path is the .risor script. Sibling .risor files can be imported.
	Path string
}

// Analyzer is a LanguageAnalyzer backed by a Risor script. Each analysis runs
// the script in a fresh VM, so one Analyzer serves any number of goroutines.
type Analyzer struct {
	language   string
	extensions []string
	grammar    string
	path       string
	source     string
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger scripts write to through log.Info and friends.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New loads the script and checks the grammar.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	if cfg.Language == "" {
		return nil, errors.New("script: language is required")
	}
	if _, ok := Grammar(cfg.Grammar); !ok {
		return nil, fmt.Errorf("script: %s: unknown grammar %q (have %s)",
			cfg.Language, cfg.Grammar, strings.Join(Grammars(), ", "))
	}
	src, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("script: loading %s: %w", cfg.Path, err)
	}

	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	if len(exts) == 0 {
		exts = DefaultExtensions(cfg.Grammar)
	}

	a := &Analyzer{
		language:   cfg.Language,
		extensions: exts,
		grammar:    cfg.Grammar,
		path:       cfg.Path,
		source:     string(src),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Analyzer) LanguageName() string { return a.language }

func (a *Analyzer) SupportedExtensions() []string { return slices.Clone(a.extensions) }

func (a *Analyzer) IsSupported(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return ext != "" && slices.Contains(a.extensions, ext)
}

// AnalyzeFile runs the script on path and returns the file analysis.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*model.FileAnalysis, error) {
	fa, _, err := a.Analyze(ctx, path)
	return fa, err
}

// ExtractDependencies runs the script on path and returns the emitted edges.
func (a *Analyzer) ExtractDependencies(ctx context.Context, path string) ([]model.Dependency, error) {
	_, deps, err := a.Analyze(ctx, path)
	return deps, err
}

// Analyze runs the script once on path.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*model.FileAnalysis, []model.Dependency, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return a.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource runs the script on content already in memory.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, src []byte) (*model.FileAnalysis, []model.Dependency, error) {
	ss := newSourceStore()
	defer ss.close()
	col := &collector{path: path}

	globals := map[string]any{
		"file_path":  path,
		"source":     string(src),
		"language":   a.language,
		"grammar":    a.grammar,
		"parse_src":  makeParseSrcFn(ss),
		"query":      makeQueryFn(ss),
		"node_text":  makeNodeTextFn(ss),
		"node_child": makeNodeChildFn(),
		"log":        mustProxy(&logObject{logger: a.logger.With("language", a.language, "path", path)}),
	}
	for k, v := range col.globals() {
		globals[k] = v
	}

	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	opts = append(opts, risor.WithImporter(importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: names,
		SourceDir:   filepath.Dir(a.path),
		Extensions:  []string{".risor"},
	})))

	if _, err := risor.Eval(ctx, a.source, opts...); err != nil {
		return nil, nil, fmt.Errorf("script: %s on %s: %w", filepath.Base(a.path), path, err)
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	deps := col.deps
	if deps == nil {
		deps = []model.Dependency{}
	}
	return a.fileAnalysis(path, string(src), col), deps, nil
}

func (a *Analyzer) fileAnalysis(path, content string, col *collector) *model.FileAnalysis {
	complexity := 0
	for i := range col.functions {
		finishFunction(&col.functions[i], col.complexity[i])
		complexity += col.functions[i].Metrics.Complexity
	}
	for i := range col.classes {
		finishClass(&col.classes[i])
	}
	loc := metrics.Lines(content)
	comments := metrics.CommentLines(content)

	return &model.FileAnalysis{
		Path:      path,
		Language:  a.language,
		Content:   model.Ptr(content),
		Functions: orEmpty(col.functions),
		Classes:   orEmpty(col.classes),
		Variables: orEmpty(col.variables),
		Imports:   orEmpty(col.imports),
		Metrics: model.CodeMetrics{
			LOC:                  loc,
			CommentLines:         comments,
			FunctionCount:        len(col.functions),
			ClassCount:           len(col.classes),
			ImportCount:          len(col.imports),
			VariableCount:        len(col.variables),
			Complexity:           complexity,
			MaintainabilityIndex: metrics.Maintainability(loc, comments, complexity),
		},
	}
}

// finishFunction fills body-derived metrics. An explicit complexity from the
// script wins over the lexer estimate.
func finishFunction(f *model.Function, explicit int) {
	if f.Body != nil {
		f.Metrics.LOC = metrics.Lines(*f.Body)
		f.Metrics.Complexity, f.Metrics.CognitiveComplexity = metrics.Complexity(*f.Body)
	} else {
		f.Metrics.LOC = f.EndLine - f.StartLine + 1
		f.Metrics.Complexity = 1
	}
	if explicit >= 0 {
		f.Metrics.Complexity = explicit
	}
}

func finishClass(c *model.Class) {
	for i := range c.Methods {
		finishFunction(&c.Methods[i], -1)
	}
	c.Metrics = model.ClassMetrics{
		LOC:           c.EndLine - c.StartLine + 1,
		MethodCount:   len(c.Methods),
		PropertyCount: len(c.Properties),
	}
	if len(c.BaseClasses) > 0 {
		c.Metrics.InheritanceDepth = 1
	}
}

func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("script: proxy error: %v", err))
	}
	return p
}
