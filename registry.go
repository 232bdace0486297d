package arbor

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNoAnalyzer is returned when no registered analyzer supports a file.
var ErrNoAnalyzer = errors.New("arbor: no analyzer for file")

// LanguageAnalyzer analyzes the source files of one language. New languages
// plug in by implementing it and registering with a Registry.
type LanguageAnalyzer interface {
	LanguageName() string
	// SupportedExtensions lists the handled extensions without the dot.
	SupportedExtensions() []string
	IsSupported(path string) bool
	AnalyzeFile(ctx context.Context, path string) (*FileAnalysis, error)
	ExtractDependencies(ctx context.Context, path string) ([]Dependency, error)
}

// FileDependencyAnalyzer is implemented by analyzers that can produce the
// analysis and the dependencies of a file from a single parse. The
// orchestrator prefers it over separate AnalyzeFile and ExtractDependencies
// calls.
type FileDependencyAnalyzer interface {
	Analyze(ctx context.Context, path string) (*FileAnalysis, []Dependency, error)
}

// SourceAnalyzer is implemented by analyzers that accept content already read
// into memory. The orchestrator uses it when it has read the file for
// hashing anyway.
type SourceAnalyzer interface {
	AnalyzeSource(ctx context.Context, path string, src []byte) (*FileAnalysis, []Dependency, error)
}

// Registry dispatches files to language analyzers. The first registered
// analyzer whose IsSupported accepts a path wins. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	analyzers []LanguageAnalyzer
}

// NewRegistry returns a Registry holding analyzers in order.
func NewRegistry(analyzers ...LanguageAnalyzer) *Registry {
	r := &Registry{}
	for _, a := range analyzers {
		r.Register(a)
	}
	return r
}

// Register appends a to the dispatch order. Nil analyzers are ignored.
func (r *Registry) Register(a LanguageAnalyzer) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers = append(r.analyzers, a)
}

// AnalyzerFor returns the analyzer for path.
func (r *Registry) AnalyzerFor(path string) (LanguageAnalyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.analyzers {
		if a.IsSupported(path) {
			return a, true
		}
	}
	return nil, false
}

// IsSupported reports whether some analyzer handles path.
func (r *Registry) IsSupported(path string) bool {
	_, ok := r.AnalyzerFor(path)
	return ok
}

// Languages returns the registered language names in dispatch order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, a.LanguageName())
	}
	return out
}

// Extensions returns every supported extension, sorted and deduplicated.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, a := range r.analyzers {
		out = append(out, a.SupportedExtensions()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Analyzers returns a copy of the registered analyzers.
func (r *Registry) Analyzers() []LanguageAnalyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.analyzers)
}
