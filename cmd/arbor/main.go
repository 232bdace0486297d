package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/arbor/internal/config"
)

var (
	flagFormat  string
	flagConfig  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is configured from --verbose before any command runs.
var logger = slog.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Static analysis and dependency graphs for Rust projects",
	Long:          "Arbor parses source files with tree-sitter, extracts functions, types and metrics, and resolves references into a file-level dependency graph.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		logger = newLogger(cmd.ErrOrStderr(), flagVerbose)
		return validateFormat(flagFormat)
	},
	// No Run, so it prints help.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: <dir>/.arbor.toml when present)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log per-file progress at debug level")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(watchCmd)
}

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be json or text", format)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, or dir/.arbor.toml, falling back to the
// defaults rooted at dir.
func loadConfig(dir string) (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	return config.LoadDir(dir)
}

// resolveTargetDir returns the absolute path of the directory to analyze.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
