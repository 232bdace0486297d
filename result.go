package arbor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/arbor/internal/graph"
)

// AnalysisResult is the aggregate outcome of one analysis run.
type AnalysisResult struct {
	FileAnalyses []FileAnalysis    `json:"file_analyses" yaml:"file_analyses"`
	Dependencies []Dependency      `json:"dependencies" yaml:"dependencies"`
	Graph        *CodeGraph        `json:"graph" yaml:"graph"`
	Structure    *ProjectStructure `json:"project_structure,omitempty" yaml:"project_structure,omitempty"`
	Root         string            `json:"root,omitempty" yaml:"root,omitempty"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
}

// Format is a serialization format for results.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes r to w. JSON output is indented.
func (r *AnalysisResult) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("arbor: encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("arbor: encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("arbor: unknown format %q", format)
	}
}

// Decode reads a result written by Encode. The graph is rebuilt from the
// dependencies when the input has none.
func Decode(rd io.Reader, format Format) (*AnalysisResult, error) {
	var res AnalysisResult
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(rd).Decode(&res); err != nil {
			return nil, fmt.Errorf("arbor: decode yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(rd).Decode(&res); err != nil {
			return nil, fmt.Errorf("arbor: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("arbor: unknown format %q", format)
	}
	if res.FileAnalyses == nil {
		res.FileAnalyses = []FileAnalysis{}
	}
	if res.Dependencies == nil {
		res.Dependencies = []Dependency{}
	}
	if res.Graph == nil || res.Graph.Nodes == nil {
		res.Graph = graph.New(res.Dependencies)
	}
	return &res, nil
}

// Save writes r to path, creating parent directories. The format follows the
// file extension.
func (r *AnalysisResult) Save(path string) error {
	var buf bytes.Buffer
	if err := r.Encode(&buf, FormatForPath(path)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("arbor: create directories: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("arbor: write result: %w", err)
	}
	return nil
}

// Load reads a result saved by Save.
func Load(path string) (*AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("arbor: read result: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatForPath(path))
}

// FileAnalysis returns the analysis of path.
func (r *AnalysisResult) FileAnalysis(path string) (*FileAnalysis, bool) {
	for i := range r.FileAnalyses {
		if r.FileAnalyses[i].Path == path {
			return &r.FileAnalyses[i], true
		}
	}
	return nil, false
}

// DependenciesOf returns the dependencies whose source is path.
func (r *AnalysisResult) DependenciesOf(path string) []Dependency {
	var out []Dependency
	for _, d := range r.Dependencies {
		if d.Source == path {
			out = append(out, d)
		}
	}
	return out
}

// DependentsOf returns the dependencies whose target is path.
func (r *AnalysisResult) DependentsOf(path string) []Dependency {
	var out []Dependency
	for _, d := range r.Dependencies {
		if d.Target == path {
			out = append(out, d)
		}
	}
	return out
}

// AllFiles returns every analyzed file and every dependency endpoint, sorted.
func (r *AnalysisResult) AllFiles() []string {
	seen := make(map[string]bool)
	for _, fa := range r.FileAnalyses {
		seen[fa.Path] = true
	}
	for _, d := range r.Dependencies {
		seen[d.Source] = true
		seen[d.Target] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
