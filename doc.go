// Package arbor is the static-analysis core of a code-intelligence platform.
// It parses source files into concrete syntax trees with tree-sitter,
// extracts structural entities and metrics, and resolves textual references
// into a cross-file dependency graph.
//
// # Pipeline
//
// An [Analyzer] dispatches each file to the first registered
// [LanguageAnalyzer] that supports it, runs a bounded pool of workers over
// the batch, and assembles an [AnalysisResult]:
//
//  1. Analyze: the language analyzer parses the file once and yields its
//     functions, classes, variables, imports and metrics together with its
//     outgoing dependencies.
//  2. Aggregate: per-file results are kept in input order, and the
//     dependencies are turned into a [CodeGraph] for traversal.
//
// The Rust analyzer is registered by default. Other languages plug in either
// by implementing [LanguageAnalyzer] or through scripted analyzers declared
// in the project's .arbor.toml.
//
// # Usage
//
//	a, err := arbor.New(arbor.WithRoot("path/to/crate"))
//	if err != nil { ... }
//	defer a.Close()
//
//	res, err := a.AnalyzeDirectory(ctx, "", nil)
//	edges, ok := res.Graph.ShortestPath(from, to)
//
// # Caching
//
// With [WithCache], analyses are stored in SQLite keyed by path and content
// hash. A file whose bytes have not changed reuses its previous analysis
// wholesale.
//
// # Failures
//
// Per-file failures (unreadable or unparseable files, script errors) are
// logged and the file is skipped; a batch never aborts because of one file.
// Discovery failures and invalid roots are returned as errors.
package arbor
