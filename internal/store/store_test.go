package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleFile(path, content string) *File {
	return &File{
		Path:     path,
		Language: "Rust",
		Hash:     ContentHash([]byte(content)),
		Analysis: &model.FileAnalysis{
			Path:      path,
			Language:  "Rust",
			Functions: []model.Function{{Name: "main", Signature: "fn main()", StartLine: 1, EndLine: 1}},
			Classes:   []model.Class{},
			Variables: []model.Variable{},
			Imports:   []model.Import{{Path: "std::io", Name: model.Ptr("io"), Line: 1}},
			Metrics:   model.CodeMetrics{LOC: 1, FunctionCount: 1, Complexity: 1, MaintainabilityIndex: 90},
		},
		Dependencies: []model.Dependency{{
			Source:     path,
			Target:     "rust/std/std/io",
			Type:       model.DepImport,
			Line:       model.Ptr(1),
			Info:       model.Ptr("Import: std::io"),
			Resolution: model.Synthetic,
		}},
	}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_TablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "snapshots"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

// =============================================================================
// Files
// =============================================================================

func TestPutLookup_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := sampleFile("/p/src/main.rs", "fn main() {}")
	require.NoError(t, s.Put(f))
	assert.False(t, f.AnalyzedAt.IsZero())

	got, err := s.Lookup(f.Path, f.Hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Positive(t, got.ID)
	assert.Equal(t, "Rust", got.Language)
	assert.Equal(t, f.Analysis, got.Analysis)
	assert.Equal(t, f.Dependencies, got.Dependencies)
	assert.WithinDuration(t, f.AnalyzedAt, got.AnalyzedAt, time.Second)
}

func TestLookup_Misses(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := sampleFile("/p/src/main.rs", "fn main() {}")
	require.NoError(t, s.Put(f))

	got, err := s.Lookup(f.Path, ContentHash([]byte("fn main() { }")))
	require.NoError(t, err)
	assert.Nil(t, got, "changed content must miss")

	got, err = s.Lookup("/p/src/other.rs", f.Hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPut_Replaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Put(sampleFile("/p/a.rs", "v1")))
	v2 := sampleFile("/p/a.rs", "v2")
	v2.Analysis.Functions = nil
	require.NoError(t, s.Put(v2))

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.rs"}, paths)

	old, err := s.Lookup("/p/a.rs", ContentHash([]byte("v1")))
	require.NoError(t, err)
	assert.Nil(t, old)

	cur, err := s.Lookup("/p/a.rs", v2.Hash)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Empty(t, cur.Analysis.Functions)
}

func TestPut_NilAnalysis(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	err := s.Put(&File{Path: "/p/a.rs", Language: "Rust", Hash: "1"})
	require.Error(t, err)
}

func TestDeleteFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	for _, p := range []string{"/p/a.rs", "/p/b.rs", "/p/c.rs"} {
		require.NoError(t, s.Put(sampleFile(p, p)))
	}
	require.NoError(t, s.DeleteFiles([]string{"/p/a.rs", "/p/c.rs", "/p/missing.rs"}))
	require.NoError(t, s.DeleteFiles(nil))

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/b.rs"}, paths)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("fn main() {}"))
	assert.Equal(t, a, ContentHash([]byte("fn main() {}")))
	assert.NotEqual(t, a, ContentHash([]byte("fn main() {}\n")))
	assert.NotEmpty(t, ContentHash(nil))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	a := Fingerprint([]byte("src/a.rs"), []byte("src/b.rs"))
	assert.Equal(t, a, Fingerprint([]byte("src/a.rs"), []byte("src/b.rs")))
	assert.NotEqual(t, a, Fingerprint([]byte("src/a.rssrc/b.rs")))
	assert.NotEqual(t, a, Fingerprint([]byte("src/a.rs")))
	assert.NotEqual(t, a, Fingerprint([]byte("src/b.rs"), []byte("src/a.rs")))
}

// =============================================================================
// Batched writes
// =============================================================================

func TestBatchedStore_CommitsConcurrentPuts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore(s)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := filepath.Join("/p", "src", string(rune('a'+i))+".rs")
			b.Put(sampleFile(p, p))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, b.Len())

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Empty(t, paths, "nothing is written before commit")

	require.NoError(t, b.Commit())
	assert.Equal(t, 0, b.Len())

	paths, err = s.Paths()
	require.NoError(t, err)
	assert.Len(t, paths, 20)

	f := sampleFile("/p/src/a.rs", "/p/src/a.rs")
	got, err := b.Lookup(f.Path, f.Hash)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestBatchedStore_FailedCommitWritesNothing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore(s)
	b.Put(sampleFile("/p/ok.rs", "ok"))
	b.Put(&File{Path: "/p/bad.rs", Language: "Rust", Hash: "x"})

	require.Error(t, b.Commit())
	assert.Equal(t, 2, b.Len())

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestBatchedStore_EmptyCommit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, NewBatchedStore(s).Commit())
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSnapshots(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	none, err := s.LatestSnapshot("/p")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := s.SaveSnapshot("/p", 2, []byte(`{"n":1}`))
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)

	second, err := s.SaveSnapshot("/p", 3, []byte(`{"n":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = s.SaveSnapshot("/other", 1, []byte(`{}`))
	require.NoError(t, err)

	latest, err := s.LatestSnapshot("/p")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 3, latest.FileCount)
	assert.JSONEq(t, `{"n":2}`, string(latest.Result))

	byID, err := s.SnapshotByID(first.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "/p", byID.Root)
	assert.JSONEq(t, `{"n":1}`, string(byID.Result))

	missing, err := s.SnapshotByID(uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
