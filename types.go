package arbor

import (
	"github.com/jward/arbor/internal/graph"
	"github.com/jward/arbor/internal/model"
	"github.com/jward/arbor/internal/store"
)

// Public type aliases for the internal model, graph and store types. These
// are Go type aliases (=), identical to the internal types at compile time,
// so no conversion is needed.

type FileAnalysis = model.FileAnalysis
type Function = model.Function
type Parameter = model.Parameter
type Class = model.Class
type Variable = model.Variable
type Import = model.Import
type CodeMetrics = model.CodeMetrics
type FunctionMetrics = model.FunctionMetrics
type ClassMetrics = model.ClassMetrics
type Dependency = model.Dependency
type DependencyType = model.DependencyType
type Resolution = model.Resolution
type Progress = model.Progress
type ProjectStructure = model.ProjectStructure
type CodeGraph = graph.CodeGraph
type GraphNode = graph.Node
type GraphEdge = graph.Edge
type Snapshot = store.Snapshot

// Dependency types.
const (
	DepImport         = model.DepImport
	DepFunctionCall   = model.DepFunctionCall
	DepInheritance    = model.DepInheritance
	DepImplementation = model.DepImplementation
	DepVariableUsage  = model.DepVariableUsage
	DepTypeUsage      = model.DepTypeUsage
)
