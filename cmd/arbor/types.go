package main

import "github.com/jward/arbor"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIAnalyzeSummary describes one analyze run.
type CLIAnalyzeSummary struct {
	Root         string         `json:"root"`
	Files        int            `json:"files"`
	Dependencies int            `json:"dependencies"`
	Nodes        int            `json:"nodes"`
	Languages    map[string]int `json:"languages"`
	Cycles       int            `json:"cycles"`
	SnapshotID   string         `json:"snapshot_id,omitempty"`
	Output       string         `json:"output,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// CLIPath is the result of the path command.
type CLIPath struct {
	From  string            `json:"from"`
	To    string            `json:"to"`
	Found bool              `json:"found"`
	Edges []arbor.GraphEdge `json:"edges"`
}

// CLIFileSummary is the result of the file command.
type CLIFileSummary struct {
	Path      string            `json:"path"`
	Language  string            `json:"language"`
	Metrics   arbor.CodeMetrics `json:"metrics"`
	Functions []CLIFunction     `json:"functions"`
	Classes   []CLIClass        `json:"classes"`
	Imports   []string          `json:"imports"`
}

// CLIFunction is a JSON-friendly function summary.
type CLIFunction struct {
	Name       string `json:"name"`
	Signature  string `json:"signature"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	IsPublic   bool   `json:"is_public"`
	Complexity int    `json:"complexity"`
	Cognitive  int    `json:"cognitive_complexity"`
}

// CLIClass is a JSON-friendly type summary.
type CLIClass struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	StartLine  int     `json:"start_line"`
	Methods    int     `json:"methods"`
	Properties int     `json:"properties"`
	Cohesion   float64 `json:"cohesion"`
}
