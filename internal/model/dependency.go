package model

// DependencyType classifies a dependency edge. It serializes as its name.
type DependencyType string

const (
	DepImport         DependencyType = "Import"
	DepFunctionCall   DependencyType = "FunctionCall"
	DepInheritance    DependencyType = "Inheritance"
	DepImplementation DependencyType = "Implementation"
	DepVariableUsage  DependencyType = "VariableUsage"
	DepTypeUsage      DependencyType = "TypeUsage"
)

// DependencyTypes lists every dependency type in declaration order.
var DependencyTypes = []DependencyType{
	DepImport, DepFunctionCall, DepInheritance, DepImplementation, DepVariableUsage, DepTypeUsage,
}

// Valid reports whether t is one of the declared dependency types.
func (t DependencyType) Valid() bool {
	for _, d := range DependencyTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Resolution records how a dependency target path was obtained.
type Resolution string

const (
	// Resolved targets were verified to exist on disk.
	Resolved Resolution = "resolved"
	// BestGuess targets were derived from naming conventions only.
	BestGuess Resolution = "best_guess"
	// Synthetic targets live under a reserved namespace (rust/std, external/...).
	Synthetic Resolution = "synthetic"
	// Self targets point back at the referencing file.
	Self Resolution = "self"
)

// Dependency is a directed, typed relationship between two files. Target is
// always populated; unresolved references degrade to a best-guess path.
type Dependency struct {
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Type       DependencyType `json:"dependency_type" yaml:"dependency_type"`
	Line       *int           `json:"line" yaml:"line"`
	Info       *string        `json:"info" yaml:"info"`
	Resolution Resolution     `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// Progress is a single progress event emitted while a batch is analyzed.
type Progress struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentItem string `json:"current_item"`
	Message     string `json:"message"`
}

// ProjectStructure describes the directory layout of an analyzed project.
type ProjectStructure struct {
	Root        string              `json:"root" yaml:"root"`
	Directories map[string]DirEntry `json:"directories" yaml:"directories"`
	Files       map[string]FileInfo `json:"files" yaml:"files"`
}

// DirEntry lists the immediate children of a directory, relative to the root.
type DirEntry struct {
	Dirs  []string `json:"dirs" yaml:"dirs"`
	Files []string `json:"files" yaml:"files"`
}

type FileInfo struct {
	Language string `json:"language" yaml:"language"`
	Size     int64  `json:"size" yaml:"size"`
}
