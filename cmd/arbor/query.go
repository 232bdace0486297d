package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
)

var (
	flagSnapshot string
	flagProject  string
)

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Shortest dependency path between two files",
	Args:  cobra.ExactArgs(2),
	RunE:  runPath,
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Dependencies of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "Files that depend on a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Dependency cycles between files",
	Args:  cobra.NoArgs,
	RunE:  runCycles,
}

var fileCmd = &cobra.Command{
	Use:   "file <file>",
	Short: "Functions, types and metrics of one analyzed file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

func init() {
	for _, c := range []*cobra.Command{pathCmd, depsCmd, dependentsCmd, cyclesCmd, fileCmd} {
		c.Flags().StringVar(&flagSnapshot, "snapshot", "", "read a result file written by 'analyze --out' instead of the cache")
		c.Flags().StringVar(&flagProject, "project", ".", "project directory whose latest cached snapshot is queried")
	}
}

// loadResult returns the result named by --snapshot, or the latest cached
// snapshot of --project.
func loadResult() (*arbor.AnalysisResult, error) {
	if flagSnapshot != "" {
		return arbor.Load(flagSnapshot)
	}

	dir, err := resolveTargetDir([]string{flagProject})
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	if cfg.CachePath == "" {
		return nil, errors.New("cache disabled in config: pass --snapshot")
	}
	if _, err := os.Stat(cfg.CachePath); err != nil {
		return nil, fmt.Errorf("no cache at %s: run 'arbor analyze' first", cfg.CachePath)
	}

	a, err := arbor.New(arbor.WithConfig(cfg), arbor.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer a.Close()

	res, err := a.LatestSnapshot("")
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("no snapshot for %s: run 'arbor analyze' first", a.Root())
	}
	return res, nil
}

func runPath(cmd *cobra.Command, args []string) error {
	from, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, err)
	}
	to, err := resolveFilePath(args[1])
	if err != nil {
		return outputError(cmd, err)
	}
	res, err := loadResult()
	if err != nil {
		return outputError(cmd, err)
	}

	edges, found := res.Graph.ShortestPath(from, to)
	if edges == nil {
		edges = []arbor.GraphEdge{}
	}
	return outputResult(cmd, CLIResult{
		Command: "path",
		Results: CLIPath{From: from, To: to, Found: found, Edges: edges},
	})
}

func runDeps(cmd *cobra.Command, args []string) error {
	return runEdges(cmd, args[0], (*arbor.AnalysisResult).DependenciesOf)
}

func runDependents(cmd *cobra.Command, args []string) error {
	return runEdges(cmd, args[0], (*arbor.AnalysisResult).DependentsOf)
}

func runEdges(cmd *cobra.Command, file string, lookup func(*arbor.AnalysisResult, string) []arbor.Dependency) error {
	path, err := resolveFilePath(file)
	if err != nil {
		return outputError(cmd, err)
	}
	res, err := loadResult()
	if err != nil {
		return outputError(cmd, err)
	}
	deps := lookup(res, path)
	if deps == nil {
		deps = []arbor.Dependency{}
	}
	return outputResult(cmd, CLIResult{Command: cmd.Name(), Results: deps})
}

func runCycles(cmd *cobra.Command, _ []string) error {
	res, err := loadResult()
	if err != nil {
		return outputError(cmd, err)
	}
	cycles := res.Graph.Cycles()
	if cycles == nil {
		cycles = [][]string{}
	}
	return outputResult(cmd, CLIResult{Command: "cycles", Results: cycles})
}

func runFile(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, err)
	}
	res, err := loadResult()
	if err != nil {
		return outputError(cmd, err)
	}
	fa, ok := res.FileAnalysis(path)
	if !ok {
		return outputError(cmd, fmt.Errorf("file not analyzed: %s", path))
	}
	return outputResult(cmd, CLIResult{Command: "file", Results: fileSummary(fa)})
}

func fileSummary(fa *arbor.FileAnalysis) CLIFileSummary {
	out := CLIFileSummary{
		Path:      fa.Path,
		Language:  fa.Language,
		Metrics:   fa.Metrics,
		Functions: make([]CLIFunction, 0, len(fa.Functions)),
		Classes:   make([]CLIClass, 0, len(fa.Classes)),
		Imports:   make([]string, 0, len(fa.Imports)),
	}
	for _, f := range fa.Functions {
		out.Functions = append(out.Functions, CLIFunction{
			Name:       f.Name,
			Signature:  f.Signature,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			IsPublic:   f.IsPublic,
			Complexity: f.Metrics.Complexity,
			Cognitive:  f.Metrics.CognitiveComplexity,
		})
	}
	for _, c := range fa.Classes {
		out.Classes = append(out.Classes, CLIClass{
			Name:       c.Name,
			Kind:       c.Kind,
			StartLine:  c.StartLine,
			Methods:    c.Metrics.MethodCount,
			Properties: c.Metrics.PropertyCount,
			Cohesion:   c.Metrics.Cohesion,
		})
	}
	for _, imp := range fa.Imports {
		out.Imports = append(out.Imports, imp.Path)
	}
	return out
}
