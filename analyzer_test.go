package arbor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func paths(root string, rels ...string) []string {
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return out
}

// =============================================================================
// Orchestration with a contract-only analyzer
// =============================================================================

func newFakeAnalyzer(t *testing.T, opts ...Option) (*Analyzer, *fakeAnalyzer) {
	t.Helper()
	fake := newFake("Fake", "x")
	opts = append([]Option{WithAnalyzers(fake), WithLogger(quietLogger())}, opts...)
	a, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, fake
}

func TestAnalyzeFilesOrderAndSkips(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.x":       "dep b.x\n",
		"b.x":       "dep c.x\ndep a.x\n",
		"bad.x":     "fail",
		"notes.txt": "ignored",
	})
	a, _ := newFakeAnalyzer(t, WithWorkers(4))

	input := paths(root, "b.x", "notes.txt", "missing.x", "bad.x", "a.x")
	res, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)

	require.Len(t, res.FileAnalyses, 2)
	assert.Equal(t, input[0], res.FileAnalyses[0].Path)
	assert.Equal(t, input[4], res.FileAnalyses[1].Path)

	require.Len(t, res.Dependencies, 3)
	assert.Equal(t, input[0], res.Dependencies[0].Source)
	assert.Equal(t, input[4], res.Dependencies[2].Source)

	assert.Len(t, res.Graph.Edges, len(res.Dependencies))
	assert.Len(t, res.Graph.Nodes, 3)
	assert.Nil(t, res.Structure)
	assert.False(t, res.CreatedAt.IsZero())
}

func TestAnalyzeFilesDeterministicAcrossWorkerCounts(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	files := map[string]string{}
	var rels []string
	for i := range 20 {
		rel := fmt.Sprintf("f%02d.x", i)
		files[rel] = fmt.Sprintf("dep f%02d.x\n", (i+1)%20)
		rels = append(rels, rel)
	}
	writeFiles(t, root, files)
	input := paths(root, rels...)

	serial, _ := newFakeAnalyzer(t, WithWorkers(1))
	parallel, _ := newFakeAnalyzer(t, WithWorkers(8))

	want, err := serial.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	got, err := parallel.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)

	assert.Equal(t, want.FileAnalyses, got.FileAnalyses)
	assert.Equal(t, want.Dependencies, got.Dependencies)
	assert.Equal(t, want.Graph, got.Graph)
}

func TestAnalyzeFilesStripsContent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "hello"})

	a, _ := newFakeAnalyzer(t)
	res, err := a.AnalyzeFiles(context.Background(), paths(root, "a.x"), nil)
	require.NoError(t, err)
	require.Len(t, res.FileAnalyses, 1)
	assert.Nil(t, res.FileAnalyses[0].Content)

	keep, _ := newFakeAnalyzer(t, WithContent(true))
	res, err = keep.AnalyzeFiles(context.Background(), paths(root, "a.x"), nil)
	require.NoError(t, err)
	require.NotNil(t, res.FileAnalyses[0].Content)
	assert.Equal(t, "hello", *res.FileAnalyses[0].Content)
}

func TestAnalyzeFilesEmptyBatch(t *testing.T) {
	t.Parallel()
	a, _ := newFakeAnalyzer(t)
	res, err := a.AnalyzeFiles(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.FileAnalyses)
	assert.Empty(t, res.Dependencies)
	assert.NotNil(t, res.Graph)
	assert.Empty(t, res.Graph.Nodes)
}

func TestAnalyzeFilesProgress(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "", "b.x": "", "c.txt": ""})
	a, _ := newFakeAnalyzer(t, WithWorkers(2))
	input := paths(root, "a.x", "c.txt", "b.x")

	// Unbuffered: every send waits for this receiver.
	progress := make(chan Progress)
	var events []Progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			events = append(events, p)
		}
	}()

	_, err := a.AnalyzeFiles(context.Background(), input, progress)
	require.NoError(t, err)
	close(progress)
	<-done

	require.Len(t, events, 3)
	for i, p := range events {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 3, p.Total)
		assert.Equal(t, input[i], p.CurrentItem)
		assert.Equal(t, "Analyzing "+input[i], p.Message)
	}
}

func TestAnalyzeFilesClosedProgressChannel(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "", "b.x": ""})
	a, _ := newFakeAnalyzer(t)

	progress := make(chan Progress, 1)
	close(progress)
	res, err := a.AnalyzeFiles(context.Background(), paths(root, "a.x", "b.x"), progress)
	require.NoError(t, err)
	assert.Len(t, res.FileAnalyses, 2)
}

func TestAnalyzeFilesCancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": ""})
	a, fake := newFakeAnalyzer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AnalyzeFiles(ctx, paths(root, "a.x"), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fake.calls.Load())
}

func TestAnalyzeFilesNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	var rels []string
	files := map[string]string{}
	for i := range 32 {
		rel := fmt.Sprintf("f%02d.x", i)
		files[rel] = "dep other.x\n"
		rels = append(rels, rel)
	}
	writeFiles(t, root, files)

	a, err := New(WithAnalyzers(newFake("Fake", "x")), WithWorkers(4), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	progress := make(chan Progress, 4)
	go func() {
		for range progress {
		}
	}()
	res, err := a.AnalyzeFiles(context.Background(), paths(root, rels...), progress)
	close(progress)
	require.NoError(t, err)
	assert.Len(t, res.FileAnalyses, 32)
}

func TestAnalyzeSingleFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "dep b.x\n", "a.txt": ""})
	a, _ := newFakeAnalyzer(t)

	fa, deps, err := a.Analyze(context.Background(), filepath.Join(root, "a.x"))
	require.NoError(t, err)
	assert.Equal(t, "Fake", fa.Language)
	assert.Len(t, deps, 1)

	_, _, err = a.Analyze(context.Background(), filepath.Join(root, "a.txt"))
	require.ErrorIs(t, err, ErrNoAnalyzer)
}

// =============================================================================
// Cache
// =============================================================================

func TestAnalyzeFilesCache(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "dep b.x\n", "b.x": ""})
	cache := filepath.Join(t.TempDir(), "cache.db")
	input := paths(root, "a.x", "b.x")

	a, fake := newFakeAnalyzer(t, WithRoot(root), WithCache(cache), WithWorkers(1))
	first, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fake.calls.Load())

	second, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fake.calls.Load(), "unchanged files come from the cache")
	assert.Equal(t, first.FileAnalyses, second.FileAnalyses)
	assert.Equal(t, first.Dependencies, second.Dependencies)

	writeFiles(t, root, map[string]string{"b.x": "dep a.x\n"})
	third, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fake.calls.Load(), "only the changed file is analyzed again")
	assert.Len(t, third.Dependencies, 2)
}

func TestAnalyzeFilesCacheKeepsContentWhenAsked(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "body"})
	cache := filepath.Join(t.TempDir(), "cache.db")
	input := paths(root, "a.x")

	a, _ := newFakeAnalyzer(t, WithRoot(root), WithCache(cache), WithContent(true))
	_, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	res, err := a.AnalyzeFiles(context.Background(), input, nil)
	require.NoError(t, err)
	require.NotNil(t, res.FileAnalyses[0].Content)
	assert.Equal(t, "body", *res.FileAnalyses[0].Content)
}

func TestSnapshots(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "dep b.x\n"})
	a, _ := newFakeAnalyzer(t, WithRoot(root), WithCache(filepath.Join(t.TempDir(), "cache.db")))

	none, err := a.LatestSnapshot("")
	require.NoError(t, err)
	assert.Nil(t, none)

	res, err := a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	snap, err := a.SaveSnapshot(res)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.FileCount)

	latest, err := a.LatestSnapshot(root)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.Dependencies, latest.Dependencies)
	assert.Equal(t, res.Graph, latest.Graph)

	byID, err := a.SnapshotByID(snap.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, root, byID.Root)
}

func TestSnapshotsWithoutCache(t *testing.T) {
	t.Parallel()
	a, _ := newFakeAnalyzer(t)
	_, err := a.SaveSnapshot(&AnalysisResult{})
	require.ErrorIs(t, err, ErrNoCache)
	_, err = a.LatestSnapshot("")
	require.ErrorIs(t, err, ErrNoCache)
}

// =============================================================================
// Directory analysis with the default Rust analyzer
// =============================================================================

const crateLib = `use crate::models::User;
use std::fmt::Display;

pub fn describe(u: &User) -> String {
    models::render(u)
}
`

const crateModels = `pub struct User {
    pub name: String,
}

pub fn render(u: &User) -> String {
    if u.name.is_empty() {
        return String::new();
    }
    u.name.clone()
}
`

func newCrate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":        "[package]\nname = \"demo\"\n",
		"src/lib.rs":        crateLib,
		"src/models.rs":     crateModels,
		"target/debug/x.rs": "fn generated() {}\n",
		"README.md":         "# demo\n",
	})
	return root
}

func TestAnalyzeDirectoryRust(t *testing.T) {
	t.Parallel()
	root := newCrate(t)
	a, err := New(WithRoot(root), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"Rust"}, a.Registry().Languages())

	res, err := a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)

	lib := filepath.Join(root, "src", "lib.rs")
	models := filepath.Join(root, "src", "models.rs")
	require.Len(t, res.FileAnalyses, 2, "target/ is skipped")
	assert.Equal(t, lib, res.FileAnalyses[0].Path)
	assert.Equal(t, models, res.FileAnalyses[1].Path)

	fa, ok := res.FileAnalysis(models)
	require.True(t, ok)
	assert.Equal(t, "Rust", fa.Language)
	require.Len(t, fa.Functions, 1)
	assert.Equal(t, "render", fa.Functions[0].Name)
	require.Len(t, fa.Classes, 1)
	assert.Equal(t, "User", fa.Classes[0].Name)

	edges, ok := res.Graph.ShortestPath(lib, models)
	require.True(t, ok)
	require.Len(t, edges, 1)

	var imported bool
	for _, d := range res.DependenciesOf(lib) {
		if d.Type == DepImport && d.Target == models {
			imported = true
			assert.Equal(t, model.Resolved, d.Resolution)
		}
	}
	assert.True(t, imported)
	assert.NotEmpty(t, res.DependentsOf(models))

	require.NotNil(t, res.Structure)
	assert.Equal(t, root, res.Structure.Root)
	assert.Contains(t, res.Structure.Files, "src/lib.rs")
	assert.Equal(t, "Rust", res.Structure.Files["src/lib.rs"].Language)
}

func TestCachedDependenciesFollowNewFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"shapes_demo\"\n",
		"src/main.rs": "use crate::shapes::Circle;\n\nfn main() {}\n",
	})
	a, err := New(WithRoot(root), WithLogger(quietLogger()), WithCache(filepath.Join(t.TempDir(), "cache.db")))
	require.NoError(t, err)
	defer a.Close()

	mainFile := filepath.Join(root, "src", "main.rs")
	importOf := func(res *AnalysisResult) Dependency {
		t.Helper()
		for _, d := range res.DependenciesOf(mainFile) {
			if d.Type == DepImport && d.Info != nil && *d.Info == "Import: crate::shapes::Circle" {
				return d
			}
		}
		t.Fatalf("no import of crate::shapes::Circle in %v", res.Dependencies)
		return Dependency{}
	}

	ctx := context.Background()
	for range 2 {
		res, err := a.AnalyzeDirectory(ctx, "", nil)
		require.NoError(t, err)
		d := importOf(res)
		assert.Equal(t, filepath.Join(root, "src", "shapes", "Circle.rs"), d.Target)
		assert.Equal(t, model.BestGuess, d.Resolution)
	}

	writeFiles(t, root, map[string]string{"src/shapes.rs": "pub struct Circle;\n"})
	res, err := a.AnalyzeDirectory(ctx, "", nil)
	require.NoError(t, err)
	d := importOf(res)
	assert.Equal(t, filepath.Join(root, "src", "shapes.rs"), d.Target)
	assert.Equal(t, model.Resolved, d.Resolution)
}

func TestCacheInvalidatedByManifestChange(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"app\"\n",
		"src/lib.rs":  "use rand::random;\n",
		"src/rand.rs": "pub fn random() {}\n",
	})
	a, err := New(WithRoot(root), WithLogger(quietLogger()), WithCache(filepath.Join(t.TempDir(), "cache.db")))
	require.NoError(t, err)
	defer a.Close()
	lib := filepath.Join(root, "src", "lib.rs")

	res, err := a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	deps := res.DependenciesOf(lib)
	require.Len(t, deps, 1)
	assert.Equal(t, model.Resolved, deps[0].Resolution)

	writeFiles(t, root, map[string]string{
		"Cargo.toml": "[package]\nname = \"app\"\n\n[dependencies]\nrand = \"0.8\"\n",
	})
	a.resolver.Reset()
	res, err = a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	deps = res.DependenciesOf(lib)
	require.Len(t, deps, 1)
	assert.Equal(t, filepath.FromSlash("external/rand/random"), deps[0].Target)
}

func TestAnalyzeFilesRelativePaths(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"chain\"\n",
		"src/main.rs": "mod a;\n\nfn main() {\n    a::run();\n}\n",
		"src/a.rs":    "pub fn run() {\n    b::go();\n}\n",
		"src/b.rs":    "pub fn go() {}\n",
	})
	t.Chdir(root)

	a, err := New(WithRoot(root), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	res, err := a.AnalyzeFiles(context.Background(), []string{"src/main.rs", "./src/a.rs", "src/../src/b.rs"}, nil)
	require.NoError(t, err)
	require.Len(t, res.FileAnalyses, 3)

	mainFile, err := filepath.Abs("src/main.rs")
	require.NoError(t, err)
	b, err := filepath.Abs("src/b.rs")
	require.NoError(t, err)
	assert.Equal(t, mainFile, res.FileAnalyses[0].Path)
	assert.Equal(t, b, res.FileAnalyses[2].Path)

	edges, ok := res.Graph.ShortestPath(mainFile, b)
	require.True(t, ok, "sources and targets share one path namespace")
	require.Len(t, edges, 2)
	assert.Equal(t, mainFile, edges[0].Source)
	assert.Equal(t, b, edges[1].Target)
}

func TestAnalyzeDirectoryPrunesRemovedFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.x": "", "b.x": ""})
	other := t.TempDir()
	writeFiles(t, other, map[string]string{"c.x": ""})
	a, _ := newFakeAnalyzer(t, WithRoot(root), WithCache(filepath.Join(t.TempDir(), "cache.db")))
	ctx := context.Background()

	_, err := a.AnalyzeFiles(ctx, paths(other, "c.x"), nil)
	require.NoError(t, err)
	_, err = a.AnalyzeDirectory(ctx, "", nil)
	require.NoError(t, err)
	cached, err := a.store.Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t, append(paths(root, "a.x", "b.x"), paths(other, "c.x")...), cached)

	require.NoError(t, os.Remove(filepath.Join(root, "b.x")))
	_, err = a.AnalyzeDirectory(ctx, "", nil)
	require.NoError(t, err)
	cached, err = a.store.Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t, append(paths(root, "a.x"), paths(other, "c.x")...), cached,
		"files outside the analyzed directory are kept")
}

func TestAnalyzeDirectoryErrors(t *testing.T) {
	t.Parallel()
	a, err := New(WithAnalyzers(newFake("Fake", "x")), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.AnalyzeDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestAnalyzeDirectoryExcludePatterns(t *testing.T) {
	t.Parallel()
	root := newCrate(t)
	cfg := config.Default()
	cfg.Root = root
	cfg.CachePath = ""
	cfg.ExcludePatterns = []string{"src/models.rs"}

	a, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	res, err := a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, res.FileAnalyses, 1)
	assert.Equal(t, filepath.Join(root, "src", "lib.rs"), res.FileAnalyses[0].Path)
}

func TestNewWithScriptedAnalyzer(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"count.risor": `emit_function({"name": "main", "start_line": 1, "end_line": 1})`,
		"main.go":     "package main\n\nfunc main() {}\n",
	})
	cfg := config.Default()
	cfg.Root = root
	cfg.CachePath = ""
	cfg.Scripts = []config.Script{{
		Language: "Go",
		Grammar:  "go",
		Path:     filepath.Join(root, "count.risor"),
	}}

	a, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{"Rust", "Go"}, a.Registry().Languages())

	res, err := a.AnalyzeDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, res.FileAnalyses, 1)
	assert.Equal(t, "Go", res.FileAnalyses[0].Language)
	assert.Equal(t, "main", res.FileAnalyses[0].Functions[0].Name)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.CachePath = ""
	cfg.Scripts = []config.Script{{Language: "Cobol", Grammar: "cobol", Path: "x.risor"}}
	_, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	require.Error(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = New(WithCache(filepath.Join(blocker, "cache.db")), WithLogger(quietLogger()))
	require.Error(t, err)
}
