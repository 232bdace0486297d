// Package resolve maps textual Rust references (use paths, qualified calls,
// type names) to file paths. Resolution is total: every call returns a path,
// falling back to a deterministic best guess when nothing exists on disk.
package resolve

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/arbor/internal/model"
)

// Synthetic namespaces.
const (
	StdNamespace      = "rust/std"
	ExternalNamespace = "external"
)

const cacheSize = 1024

// Resolution is a resolved target path and how it was obtained.
type Resolution struct {
	Path string
	Kind model.Resolution
}

// Resolver resolves references relative to a project root. It is safe for
// concurrent use.
type Resolver struct {
	root string

	// dir -> package root ("" when no manifest was found)
	roots *lru.Cache[string, string]
	// manifest path -> parsed manifest
	manifests *lru.Cache[string, *Manifest]
}

// New creates a Resolver for the project rooted at root.
func New(root string) (*Resolver, error) {
	roots, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	manifests, err := lru.New[string, *Manifest](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: filepath.Clean(root), roots: roots, manifests: manifests}, nil
}

// Root returns the project root.
func (r *Resolver) Root() string { return r.root }

// Reset drops cached package roots and manifests. Call it after files on
// disk change.
func (r *Resolver) Reset() {
	r.roots.Purge()
	r.manifests.Purge()
}

// Resolve maps a "::" separated reference found in source to a path.
func (r *Resolver) Resolve(ref, source string) Resolution {
	parts := splitPath(ref)
	if len(parts) == 0 {
		return Resolution{Path: source, Kind: model.Self}
	}

	if stdNamespaces[parts[0]] {
		return Resolution{Path: filepath.Join(append([]string{StdNamespace}, parts...)...), Kind: model.Synthetic}
	}
	if parts[0] == "Self" {
		return Resolution{Path: source, Kind: model.Self}
	}

	pkgRoot, hasManifest := r.packageRoot(filepath.Dir(source))
	if hasManifest {
		if m := r.manifest(filepath.Join(pkgRoot, ManifestFile)); m != nil && m.Declares(parts[0]) {
			return Resolution{Path: filepath.Join(append([]string{ExternalNamespace}, parts...)...), Kind: model.Synthetic}
		}
	}

	srcDir := filepath.Join(pkgRoot, "src")
	sourceDir := filepath.Dir(source)

	var (
		candidates []string
		guess      string
	)
	switch parts[0] {
	case "crate":
		if len(parts) == 1 {
			candidates = []string{filepath.Join(srcDir, "lib.rs"), filepath.Join(srcDir, "main.rs")}
			guess = candidates[0]
			break
		}
		candidates = modulePrefixes(srcDir, parts[1:])
		guess = moduleFile(srcDir, parts[1:])
	case "self":
		candidates = modulePrefixes(sourceDir, parts[1:])
		guess = moduleFile(sourceDir, parts[1:])
	case "super":
		parent := filepath.Dir(sourceDir)
		candidates = modulePrefixes(parent, parts[1:])
		guess = moduleFile(parent, parts[1:])
	default:
		// Without a local module of that name the path names a crate that the
		// manifest does not declare.
		if !fileExists(filepath.Join(srcDir, parts[0]+".rs")) && !fileExists(filepath.Join(srcDir, parts[0], "mod.rs")) {
			return Resolution{Path: filepath.Join(append([]string{ExternalNamespace}, parts...)...), Kind: model.Synthetic}
		}
		candidates = []string{
			filepath.Join(srcDir, "lib.rs"),
			filepath.Join(srcDir, "main.rs"),
			filepath.Join(srcDir, parts[0]+".rs"),
			filepath.Join(srcDir, parts[0], "mod.rs"),
		}
		if len(parts) > 1 {
			candidates = append(candidates,
				moduleFile(srcDir, parts),
				filepath.Join(srcDir, filepath.Join(parts...), "mod.rs"),
			)
		}
		guess = moduleFile(srcDir, parts)
	}

	for _, c := range candidates {
		if fileExists(c) {
			return Resolution{Path: c, Kind: model.Resolved}
		}
	}
	return Resolution{Path: guess, Kind: model.BestGuess}
}

// ResolveModule resolves the module qualifier of a call such as
// module::function(). Sibling files and directory modules are preferred
// over general reference resolution. A single capitalized qualifier, as in
// Vec::new() or Self::build(), names a type and resolves like one.
func (r *Resolver) ResolveModule(name, source string) Resolution {
	dir := filepath.Dir(source)
	parts := splitPath(name)
	if len(parts) == 1 && unicode.IsUpper([]rune(parts[0])[0]) {
		return r.ResolveType(parts[0], source)
	}
	if len(parts) == 1 {
		for _, c := range []string{
			filepath.Join(dir, parts[0]+".rs"),
			filepath.Join(dir, parts[0], "mod.rs"),
		} {
			if fileExists(c) {
				return Resolution{Path: c, Kind: model.Resolved}
			}
		}
	}
	return r.Resolve(name, source)
}

// ResolveType resolves a type name used in source.
func (r *Resolver) ResolveType(name, source string) Resolution {
	if strings.Contains(name, "::") {
		return r.Resolve(name, source)
	}
	if StdTypes[name] {
		return Resolution{Path: StdNamespace, Kind: model.Synthetic}
	}
	if stem := SnakeCase(name); stem != "" {
		p := filepath.Join(filepath.Dir(source), stem+".rs")
		if fileExists(p) {
			return Resolution{Path: p, Kind: model.Resolved}
		}
	}
	return Resolution{Path: source, Kind: model.Self}
}

// PackageRoot returns the nearest directory at or above dir that contains a
// manifest, without leaving the project root. When none is found the project
// root is returned with ok false.
func (r *Resolver) PackageRoot(dir string) (root string, ok bool) {
	return r.packageRoot(dir)
}

func (r *Resolver) packageRoot(dir string) (string, bool) {
	dir = filepath.Clean(dir)
	if v, ok := r.roots.Get(dir); ok {
		if v == "" {
			return r.root, false
		}
		return v, true
	}
	found, ok := FindPackageRoot(dir, r.root)
	if !ok {
		found = ""
	}
	r.roots.Add(dir, found)
	if !ok {
		return r.root, false
	}
	return found, true
}

func (r *Resolver) manifest(path string) *Manifest {
	if m, ok := r.manifests.Get(path); ok {
		return m
	}
	m, err := ReadManifest(path)
	if err != nil {
		return nil
	}
	r.manifests.Add(path, m)
	return m
}

// FindPackageRoot walks upward from dir looking for a manifest, stopping once
// it would leave root.
func FindPackageRoot(dir, root string) (string, bool) {
	dir = filepath.Clean(dir)
	root = filepath.Clean(root)
	if filepath.IsAbs(dir) != filepath.IsAbs(root) {
		dir, _ = filepath.Abs(dir)
		root, _ = filepath.Abs(root)
	}
	for within(dir, root) {
		if fileExists(filepath.Join(dir, ManifestFile)) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func within(dir, root string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// modulePrefixes lists file-module and directory-module candidates for the
// joined segments, then for each shorter prefix. Items named by a use path
// (functions, types) live in the module file of their parent path.
func modulePrefixes(base string, parts []string) []string {
	var out []string
	for n := len(parts); n > 0; n-- {
		out = append(out,
			moduleFile(base, parts[:n]),
			filepath.Join(base, filepath.Join(parts[:n]...), "mod.rs"),
		)
	}
	return out
}

func moduleFile(base string, parts []string) string {
	if len(parts) == 0 {
		return filepath.Join(base, "mod.rs")
	}
	return filepath.Join(base, filepath.Join(parts...)+".rs")
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
