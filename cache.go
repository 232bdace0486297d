package arbor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jward/arbor/internal/project"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/store"
)

// layoutFingerprint hashes what dependency resolution reads besides the file
// itself: the source files under the project root, the batch inputs and the
// content of every manifest under the root. It is part of every cache key,
// so cached dependencies are reused only while the layout is unchanged.
func (a *Analyzer) layoutFingerprint(ctx context.Context, inputs []string) (string, error) {
	files, err := a.Discover(ctx, a.root)
	if err != nil {
		return "", err
	}
	manifests, err := project.Discover(ctx, a.root, project.Filter{Extensions: []string{"toml"}})
	if err != nil {
		return "", fmt.Errorf("arbor: discover manifests: %w", err)
	}

	files = append(files, inputs...)
	slices.Sort(files)
	files = slices.Compact(files)

	parts := make([][]byte, 0, len(files)+2)
	for _, f := range files {
		parts = append(parts, []byte(f))
	}
	for _, m := range manifests {
		if filepath.Base(m) != resolve.ManifestFile {
			continue
		}
		content, err := os.ReadFile(m)
		if err != nil {
			return "", fmt.Errorf("arbor: read manifest: %w", err)
		}
		parts = append(parts, []byte(m), content)
	}
	return store.Fingerprint(parts...), nil
}

// pruneCache drops cached analyses of files under dir that discovery no
// longer reports, such as deleted or renamed files.
func (a *Analyzer) pruneCache(dir string, discovered []string) {
	if a.store == nil {
		return
	}
	cached, err := a.store.Paths()
	if err != nil {
		a.logger.Warn("cache prune failed", "error", err)
		return
	}
	keep := make(map[string]bool, len(discovered))
	for _, p := range discovered {
		keep[p] = true
	}
	prefix := dir + string(filepath.Separator)
	var stale []string
	for _, p := range cached {
		if strings.HasPrefix(p, prefix) && !keep[p] {
			stale = append(stale, p)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := a.store.DeleteFiles(stale); err != nil {
		a.logger.Warn("cache prune failed", "error", err)
		return
	}
	a.logger.Debug("pruned cache", "files", len(stale))
}
