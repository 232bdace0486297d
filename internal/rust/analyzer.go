// Package rust is the reference language analyzer. It parses Rust sources with
// tree-sitter, extracts functions, types, variables and imports, computes
// metrics, and emits dependency edges through the reference resolver.
package rust

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tsrust "github.com/smacker/go-tree-sitter/rust"

	"github.com/jward/arbor/internal/metrics"
	"github.com/jward/arbor/internal/model"
	"github.com/jward/arbor/internal/resolve"
)

// LanguageName is the language reported for Rust files.
const LanguageName = "Rust"

// ErrParse is returned when tree-sitter cannot produce a tree for a file.
var ErrParse = errors.New("rust: parse failed")

// Analyzer analyzes Rust files. Compiled queries are shared, so one Analyzer
// serves any number of goroutines.
type Analyzer struct {
	lang     *sitter.Language
	queries  *queries
	resolver *resolve.Resolver
}

// New compiles the query templates. A compile error means a template is
// broken and is returned as is.
func New(resolver *resolve.Resolver) (*Analyzer, error) {
	if resolver == nil {
		return nil, errors.New("rust: nil resolver")
	}
	lang := tsrust.GetLanguage()
	q, err := compileQueries(lang)
	if err != nil {
		return nil, err
	}
	return &Analyzer{lang: lang, queries: q, resolver: resolver}, nil
}

// Close releases the compiled queries.
func (a *Analyzer) Close() {
	a.queries.close()
}

// Resolver returns the resolver used for dependency targets.
func (a *Analyzer) Resolver() *resolve.Resolver { return a.resolver }

func (a *Analyzer) LanguageName() string { return LanguageName }

func (a *Analyzer) SupportedExtensions() []string { return []string{"rs"} }

func (a *Analyzer) IsSupported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".rs")
}

// AnalyzeFile parses path and extracts its entities and metrics.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*model.FileAnalysis, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rust: read %s: %w", path, err)
	}
	p, err := parse(ctx, a.lang, path, src)
	if err != nil {
		return nil, err
	}
	defer p.close()
	return a.fileAnalysis(p, a.extractEntities(p)), nil
}

// ExtractDependencies parses path and returns its outgoing dependency edges.
func (a *Analyzer) ExtractDependencies(ctx context.Context, path string) ([]model.Dependency, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rust: read %s: %w", path, err)
	}
	p, err := parse(ctx, a.lang, path, src)
	if err != nil {
		return nil, err
	}
	defer p.close()
	return a.extractDependencies(p, a.extractImports(p)), nil
}

// Analyze reads and parses path once and returns both the file analysis and
// its dependencies.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*model.FileAnalysis, []model.Dependency, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("rust: read %s: %w", path, err)
	}
	return a.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource is Analyze for content already in memory.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, src []byte) (*model.FileAnalysis, []model.Dependency, error) {
	p, err := parse(ctx, a.lang, path, src)
	if err != nil {
		return nil, nil, err
	}
	defer p.close()

	ents := a.extractEntities(p)
	return a.fileAnalysis(p, ents), a.extractDependencies(p, ents.imports), nil
}

func (a *Analyzer) fileAnalysis(p *parsedFile, ents entities) *model.FileAnalysis {
	content := string(p.src)
	complexity := 0
	for _, f := range ents.functions {
		complexity += f.Metrics.Complexity
	}
	loc := metrics.Lines(content)
	comments := metrics.CommentLines(content)

	return &model.FileAnalysis{
		Path:      p.path,
		Language:  LanguageName,
		Content:   model.Ptr(content),
		Functions: orEmpty(ents.functions),
		Classes:   orEmpty(ents.classes),
		Variables: orEmpty(ents.variables),
		Imports:   orEmpty(ents.imports),
		Metrics: model.CodeMetrics{
			LOC:                  loc,
			CommentLines:         comments,
			FunctionCount:        len(ents.functions),
			ClassCount:           len(ents.classes),
			ImportCount:          len(ents.imports),
			VariableCount:        len(ents.variables),
			Complexity:           complexity,
			MaintainabilityIndex: metrics.Maintainability(loc, comments, complexity),
		},
	}
}

func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
