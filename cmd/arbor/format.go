package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
)

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()

	switch v := result.Results.(type) {
	case CLIAnalyzeSummary:
		formatAnalyzeText(w, v)
	case CLIPath:
		formatPathText(w, v)
	case []arbor.Dependency:
		formatDependenciesText(w, v)
	case [][]string:
		formatCyclesText(w, v)
	case CLIFileSummary:
		formatFileText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// formatAnalyzeText formats CLIAnalyzeSummary as readable text.
func formatAnalyzeText(w io.Writer, s CLIAnalyzeSummary) {
	fmt.Fprintf(w, "Root:         %s\n", s.Root)
	fmt.Fprintf(w, "Files:        %d\n", s.Files)
	fmt.Fprintf(w, "Dependencies: %d\n", s.Dependencies)
	fmt.Fprintf(w, "Graph nodes:  %d\n", s.Nodes)
	fmt.Fprintf(w, "Cycles:       %d\n", s.Cycles)
	if s.SnapshotID != "" {
		fmt.Fprintf(w, "Snapshot:     %s\n", s.SnapshotID)
	}
	if s.Output != "" {
		fmt.Fprintf(w, "Written to:   %s\n", s.Output)
	}

	if len(s.Languages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Languages:")
		langs := make([]string, 0, len(s.Languages))
		for l := range s.Languages {
			langs = append(langs, l)
		}
		slices.Sort(langs)
		for _, l := range langs {
			fmt.Fprintf(w, "  %s: %d files\n", l, s.Languages[l])
		}
	}
}

// formatPathText prints one edge per line, or a note when there is no path.
func formatPathText(w io.Writer, p CLIPath) {
	if !p.Found {
		fmt.Fprintf(w, "no path from %s to %s\n", p.From, p.To)
		return
	}
	if len(p.Edges) == 0 {
		fmt.Fprintln(w, p.From)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTYPE\tTARGET")
	for _, e := range p.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Source, e.Type, e.Target)
	}
	tw.Flush()
}

// formatDependenciesText formats dependencies as aligned columns.
func formatDependenciesText(w io.Writer, deps []arbor.Dependency) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLINE\tTYPE\tTARGET\tRESOLUTION")
	for _, d := range deps {
		line := "-"
		if d.Line != nil {
			line = strconv.Itoa(*d.Line)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Source, line, d.Type, d.Target, d.Resolution)
	}
	tw.Flush()
}

// formatCyclesText prints each cycle as a numbered block of files.
func formatCyclesText(w io.Writer, cycles [][]string) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "no cycles")
		return
	}
	for i, c := range cycles {
		fmt.Fprintf(w, "Cycle %d (%d files):\n", i+1, len(c))
		for _, f := range c {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}

func formatFileText(w io.Writer, f CLIFileSummary) {
	fmt.Fprintf(w, "%s (%s)\n", f.Path, f.Language)
	fmt.Fprintf(w, "LOC %d, comments %d, complexity %d, maintainability %.1f\n",
		f.Metrics.LOC, f.Metrics.CommentLines, f.Metrics.Complexity, f.Metrics.MaintainabilityIndex)

	if len(f.Functions) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FUNCTION\tLINES\tPUBLIC\tCYCLOMATIC\tCOGNITIVE")
		for _, fn := range f.Functions {
			fmt.Fprintf(tw, "%s\t%d-%d\t%t\t%d\t%d\n",
				fn.Name, fn.StartLine, fn.EndLine, fn.IsPublic, fn.Complexity, fn.Cognitive)
		}
		tw.Flush()
	}

	if len(f.Classes) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tKIND\tLINE\tMETHODS\tFIELDS\tCOHESION")
		for _, c := range f.Classes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.2f\n",
				c.Name, c.Kind, c.StartLine, c.Methods, c.Properties, c.Cohesion)
		}
		tw.Flush()
	}

	if len(f.Imports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Imports:")
		for _, imp := range f.Imports {
			fmt.Fprintf(w, "  %s\n", imp)
		}
	}
}
