// Package project finds the source files of a project and describes its
// directory layout.
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// skipDirs are never descended into by the filesystem walk.
var skipDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// SkipDir reports whether a directory named name is left out of discovery:
// hidden directories and build or dependency output.
func SkipDir(name string) bool {
	return (strings.HasPrefix(name, ".") && name != "." && name != "..") || skipDirs[name]
}

// Filter selects files by extension and excludes them by glob.
type Filter struct {
	// Extensions without the leading dot. Empty accepts every extension.
	Extensions []string
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root.
	Exclude []string
}

// Validate reports the first malformed exclude pattern.
func (f Filter) Validate() error {
	for _, p := range f.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("project: invalid exclude pattern %q", p)
		}
	}
	return nil
}

// Match reports whether rel, a path relative to the root, passes the filter.
func (f Filter) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if len(f.Extensions) > 0 {
		ext := strings.TrimPrefix(filepath.Ext(rel), ".")
		if !slices.ContainsFunc(f.Extensions, func(e string) bool {
			return strings.EqualFold(strings.TrimPrefix(e, "."), ext)
		}) {
			return false
		}
	}
	for _, p := range f.Exclude {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return false
		}
	}
	return true
}

// Discover lists the files under root that pass filter, as sorted absolute
// paths. Inside a git work tree it uses git ls-files so .gitignore is
// respected; otherwise it walks the filesystem, skipping hidden directories
// and build output.
func Discover(ctx context.Context, root string, filter Filter) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("project: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project: root %s is not a directory", abs)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	paths, err := gitListFiles(ctx, abs, filter)
	if err != nil {
		// Not a git repo or git not available.
		paths, err = walkListFiles(ctx, abs, filter)
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// gitListFiles lists tracked and untracked but not ignored files.
func gitListFiles(ctx context.Context, root string, filter Filter) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !filter.Match(line) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(line))
		// Deleted but still tracked files show up in --cached.
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

func walkListFiles(ctx context.Context, root string, filter Filter) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && SkipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if filter.Match(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("project: walk directory: %w", err)
	}
	return paths, nil
}
