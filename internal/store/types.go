package store

import (
	"time"

	"github.com/jward/arbor/internal/model"
)

// File is the cached analysis of one source file at one content hash.
type File struct {
	ID           int64
	Path         string
	Language     string
	Hash         string
	Analysis     *model.FileAnalysis
	Dependencies []model.Dependency
	AnalyzedAt   time.Time
}

// Snapshot is a serialized analysis result of a whole project.
type Snapshot struct {
	ID        string
	Root      string
	CreatedAt time.Time
	FileCount int
	// Result is the JSON encoding of the analysis result.
	Result []byte
}
