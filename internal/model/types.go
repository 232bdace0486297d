// Package model defines the records produced by analysis: per-file structural
// data, typed dependency edges, and metrics. All types serialize to JSON and
// YAML with snake_case keys.
package model

// FileAnalysis is the complete structural analysis of a single source file.
// One FileAnalysis exists per analyzed file per run.
type FileAnalysis struct {
	Path      string      `json:"path" yaml:"path"`
	Language  string      `json:"language" yaml:"language"`
	Content   *string     `json:"content,omitempty" yaml:"content,omitempty"`
	Functions []Function  `json:"functions" yaml:"functions"`
	Classes   []Class     `json:"classes" yaml:"classes"`
	Variables []Variable  `json:"variables" yaml:"variables"`
	Imports   []Import    `json:"imports" yaml:"imports"`
	Metrics   CodeMetrics `json:"metrics" yaml:"metrics"`
}

type Function struct {
	Name       string          `json:"name" yaml:"name"`
	Signature  string          `json:"signature" yaml:"signature"`
	StartLine  int             `json:"start_line" yaml:"start_line"`
	EndLine    int             `json:"end_line" yaml:"end_line"`
	Body       *string         `json:"body,omitempty" yaml:"body,omitempty"`
	ReturnType *string         `json:"return_type" yaml:"return_type"`
	Parameters []Parameter     `json:"parameters" yaml:"parameters"`
	IsPublic   bool            `json:"is_public" yaml:"is_public"`
	Metrics    FunctionMetrics `json:"metrics" yaml:"metrics"`
}

type Parameter struct {
	Name         string  `json:"name" yaml:"name"`
	ParamType    *string `json:"param_type" yaml:"param_type"`
	DefaultValue *string `json:"default_value" yaml:"default_value"`
	Position     int     `json:"position" yaml:"position"`
}

// Class is a struct-, enum-, or trait-like aggregate type.
type Class struct {
	Name        string       `json:"name" yaml:"name"`
	Kind        string       `json:"kind" yaml:"kind"`
	StartLine   int          `json:"start_line" yaml:"start_line"`
	EndLine     int          `json:"end_line" yaml:"end_line"`
	Methods     []Function   `json:"methods" yaml:"methods"`
	Properties  []Variable   `json:"properties" yaml:"properties"`
	BaseClasses []string     `json:"base_classes" yaml:"base_classes"`
	IsPublic    bool         `json:"is_public" yaml:"is_public"`
	Metrics     ClassMetrics `json:"metrics" yaml:"metrics"`
}

// Class kinds.
const (
	KindStruct = "struct"
	KindEnum   = "enum"
	KindTrait  = "trait"
)

type Variable struct {
	Name      string  `json:"name" yaml:"name"`
	VarType   *string `json:"var_type" yaml:"var_type"`
	Line      int     `json:"line" yaml:"line"`
	IsPublic  bool    `json:"is_public" yaml:"is_public"`
	InitValue *string `json:"init_value" yaml:"init_value"`
}

type Import struct {
	Path       string  `json:"path" yaml:"path"`
	Name       *string `json:"name" yaml:"name"`
	Line       int     `json:"line" yaml:"line"`
	IsRelative bool    `json:"is_relative" yaml:"is_relative"`
}

// CodeMetrics aggregates metrics over a whole file. Complexity is the sum of
// the cyclomatic complexity of every function in the file.
type CodeMetrics struct {
	LOC                  int     `json:"loc" yaml:"loc"`
	CommentLines         int     `json:"comment_lines" yaml:"comment_lines"`
	FunctionCount        int     `json:"function_count" yaml:"function_count"`
	ClassCount           int     `json:"class_count" yaml:"class_count"`
	ImportCount          int     `json:"import_count" yaml:"import_count"`
	VariableCount        int     `json:"variable_count" yaml:"variable_count"`
	Complexity           int     `json:"complexity" yaml:"complexity"`
	MaintainabilityIndex float64 `json:"maintainability_index" yaml:"maintainability_index"`
}

type FunctionMetrics struct {
	LOC                 int `json:"loc" yaml:"loc"`
	Complexity          int `json:"complexity" yaml:"complexity"`
	ParameterCount      int `json:"parameter_count" yaml:"parameter_count"`
	CognitiveComplexity int `json:"cognitive_complexity" yaml:"cognitive_complexity"`
}

type ClassMetrics struct {
	LOC              int     `json:"loc" yaml:"loc"`
	MethodCount      int     `json:"method_count" yaml:"method_count"`
	PropertyCount    int     `json:"property_count" yaml:"property_count"`
	InheritanceDepth int     `json:"inheritance_depth" yaml:"inheritance_depth"`
	Cohesion         float64 `json:"cohesion" yaml:"cohesion"`
}

// Ptr returns a pointer to v. Used for the optional string fields above.
func Ptr[T any](v T) *T { return &v }
