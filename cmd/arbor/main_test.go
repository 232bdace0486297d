package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor"
)

// The commands share package-level flag variables, so these tests run
// sequentially.

const fixtureLib = `use crate::models::User;

pub fn describe(u: &User) -> String {
    models::render(u)
}
`

const fixtureModels = `pub struct User {
    pub name: String,
}

pub fn render(u: &User) -> String {
    u.name.clone()
}
`

func createCrate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Cargo.toml":    "[package]\nname = \"demo\"\n",
		"src/lib.rs":    fixtureLib,
		"src/models.rs": fixtureModels,
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command in-process and returns stdout, stderr and
// the command error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeResult(t *testing.T, out string) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result), "invalid JSON output: %s", out)
	return result
}

// analyzeCrate runs analyze on a fresh fixture with the default cache.
func analyzeCrate(t *testing.T) string {
	t.Helper()
	root := createCrate(t)
	out, stderr, err := runCLI(t, "analyze", root)
	require.NoError(t, err, "analyze failed: %s", stderr)
	require.FileExists(t, filepath.Join(root, ".arbor", "cache.db"))
	decodeResult(t, out)
	return root
}

// =============================================================================
// Helpers
// =============================================================================

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("xml"))
}

func TestResolveTargetDir(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")

	file := filepath.Join(dir, "f.rs")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")
}

func TestResolveFilePath(t *testing.T) {
	got, err := resolveFilePath("/a/b/../c.rs")
	require.NoError(t, err)
	assert.Equal(t, "/a/c.rs", got)

	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err = resolveFilePath("x.rs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "x.rs"), got)
}

// =============================================================================
// analyze
// =============================================================================

func TestAnalyze(t *testing.T) {
	root := createCrate(t)
	outPath := filepath.Join(root, "out", "result.yaml")

	out, stderr, err := runCLI(t, "analyze", root, "--out", outPath, "--workers", "2")
	require.NoError(t, err, stderr)

	result := decodeResult(t, out)
	assert.Equal(t, "analyze", result["command"])
	assert.Empty(t, result["error"])
	summary, ok := result["results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, root, summary["root"])
	assert.EqualValues(t, 2, summary["files"])
	assert.NotEmpty(t, summary["snapshot_id"])
	assert.Equal(t, outPath, summary["output"])
	assert.EqualValues(t, 0, summary["cycles"])
	langs, ok := summary["languages"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, langs["Rust"])

	res, err := arbor.Load(outPath)
	require.NoError(t, err)
	assert.Len(t, res.FileAnalyses, 2)
}

func TestAnalyzeNoCache(t *testing.T) {
	root := createCrate(t)
	out, stderr, err := runCLI(t, "analyze", root, "--no-cache")
	require.NoError(t, err, stderr)

	summary := decodeResult(t, out)["results"].(map[string]any)
	assert.Nil(t, summary["snapshot_id"])
	assert.NoDirExists(t, filepath.Join(root, ".arbor"))
}

func TestAnalyzeMissingDirectory(t *testing.T) {
	out, _, err := runCLI(t, "analyze", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	result := decodeResult(t, out)
	assert.Equal(t, "analyze", result["command"])
	assert.Contains(t, result["error"], "directory not found")
	assert.True(t, errorHandled)
}

func TestAnalyzeTextFormat(t *testing.T) {
	root := createCrate(t)
	out, stderr, err := runCLI(t, "--format", "text", "analyze", root, "--no-cache")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Files:        2")
	assert.Contains(t, out, "Rust: 2 files")
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := runCLI(t, "--format", "xml", "cycles")
	assert.ErrorContains(t, err, "invalid --format")
}

// =============================================================================
// Queries
// =============================================================================

func TestQueryDeps(t *testing.T) {
	root := analyzeCrate(t)
	lib := filepath.Join(root, "src", "lib.rs")
	models := filepath.Join(root, "src", "models.rs")

	out, stderr, err := runCLI(t, "deps", lib, "--project", root)
	require.NoError(t, err, stderr)
	result := decodeResult(t, out)
	assert.Equal(t, "deps", result["command"])

	deps, ok := result["results"].([]any)
	require.True(t, ok)
	var targets []string
	for _, d := range deps {
		dep := d.(map[string]any)
		assert.Equal(t, lib, dep["source"])
		targets = append(targets, dep["target"].(string))
	}
	assert.Contains(t, targets, models)
}

func TestQueryDependents(t *testing.T) {
	root := analyzeCrate(t)
	lib := filepath.Join(root, "src", "lib.rs")
	models := filepath.Join(root, "src", "models.rs")

	out, stderr, err := runCLI(t, "dependents", models, "--project", root)
	require.NoError(t, err, stderr)

	deps := decodeResult(t, out)["results"].([]any)
	var sources []string
	for _, d := range deps {
		dep := d.(map[string]any)
		assert.Equal(t, models, dep["target"])
		sources = append(sources, dep["source"].(string))
	}
	assert.Contains(t, sources, lib)
}

func TestQueryPath(t *testing.T) {
	root := analyzeCrate(t)
	lib := filepath.Join(root, "src", "lib.rs")
	models := filepath.Join(root, "src", "models.rs")

	out, stderr, err := runCLI(t, "path", lib, models, "--project", root)
	require.NoError(t, err, stderr)
	path := decodeResult(t, out)["results"].(map[string]any)
	assert.Equal(t, true, path["found"])
	edges := path["edges"].([]any)
	require.Len(t, edges, 1)
	assert.Equal(t, models, edges[0].(map[string]any)["target"])

	out, stderr, err = runCLI(t, "path", models, lib, "--project", root)
	require.NoError(t, err, stderr)
	path = decodeResult(t, out)["results"].(map[string]any)
	assert.Equal(t, false, path["found"])
	assert.Empty(t, path["edges"])
}

func TestQueryCycles(t *testing.T) {
	root := analyzeCrate(t)

	out, stderr, err := runCLI(t, "cycles", "--project", root)
	require.NoError(t, err, stderr)
	cycles, ok := decodeResult(t, out)["results"].([]any)
	require.True(t, ok, "cycles should be a list")
	assert.Empty(t, cycles)

	out, _, err = runCLI(t, "--format", "text", "cycles", "--project", root)
	require.NoError(t, err)
	assert.Equal(t, "no cycles\n", out)
}

func TestQueryFile(t *testing.T) {
	root := analyzeCrate(t)
	models := filepath.Join(root, "src", "models.rs")

	out, stderr, err := runCLI(t, "file", models, "--project", root)
	require.NoError(t, err, stderr)
	file := decodeResult(t, out)["results"].(map[string]any)
	assert.Equal(t, "Rust", file["language"])

	fns := file["functions"].([]any)
	require.Len(t, fns, 1)
	assert.Equal(t, "render", fns[0].(map[string]any)["name"])
	classes := file["classes"].([]any)
	require.Len(t, classes, 1)
	assert.Equal(t, "User", classes[0].(map[string]any)["name"])

	out, _, err = runCLI(t, "--format", "text", "file", models, "--project", root)
	require.NoError(t, err)
	assert.Contains(t, out, "FUNCTION")
	assert.Contains(t, out, "render")
}

func TestQueryFileNotAnalyzed(t *testing.T) {
	root := analyzeCrate(t)
	out, _, err := runCLI(t, "file", filepath.Join(root, "nope.rs"), "--project", root)
	require.Error(t, err)
	assert.Contains(t, decodeResult(t, out)["error"], "file not analyzed")
}

func TestQueryFromSnapshotFile(t *testing.T) {
	root := createCrate(t)
	outPath := filepath.Join(t.TempDir(), "result.json")
	_, stderr, err := runCLI(t, "analyze", root, "--no-cache", "--out", outPath)
	require.NoError(t, err, stderr)

	lib := filepath.Join(root, "src", "lib.rs")
	out, stderr, err := runCLI(t, "--format", "text", "deps", lib, "--snapshot", outPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, filepath.Join(root, "src", "models.rs"))
}

func TestQueryWithoutCache(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, "deps", filepath.Join(dir, "a.rs"), "--project", dir)
	require.Error(t, err)

	result := decodeResult(t, out)
	assert.Equal(t, "deps", result["command"])
	assert.Contains(t, result["error"], "run 'arbor analyze' first")
}

func TestQueryTextErrorGoesToStderr(t *testing.T) {
	dir := t.TempDir()
	out, stderr, err := runCLI(t, "--format", "text", "cycles", "--project", dir)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error: no cache")
}
