package resolve

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the package manifest that anchors a crate.
const ManifestFile = "Cargo.toml"

// Manifest is the subset of a Cargo manifest the resolver consults.
type Manifest struct {
	// Names holds the package name and every declared dependency name with
	// hyphens normalized to underscores.
	Names map[string]bool
	// Raw is the manifest text, kept for the containment fallback.
	Raw string
	// Parsed is false when the TOML could not be decoded.
	Parsed bool
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib struct {
		Name string `toml:"name"`
	} `toml:"lib"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	Workspace         struct {
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"workspace"`
}

// ReadManifest loads and decodes a manifest. A manifest that exists but is
// not valid TOML is still returned, with Parsed false.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: read manifest: %w", err)
	}
	return ParseManifest(data), nil
}

// ParseManifest decodes manifest text.
func ParseManifest(data []byte) *Manifest {
	m := &Manifest{Names: make(map[string]bool), Raw: string(data)}

	var cm cargoManifest
	if err := toml.Unmarshal(data, &cm); err != nil {
		return m
	}
	m.Parsed = true

	add := func(name string) {
		if name != "" {
			m.Names[crateName(name)] = true
		}
	}
	add(cm.Package.Name)
	add(cm.Lib.Name)
	for _, deps := range []map[string]any{
		cm.Dependencies, cm.DevDependencies, cm.BuildDependencies, cm.Workspace.Dependencies,
	} {
		for name, spec := range deps {
			add(name)
			// `alias = { package = "real-name" }` exposes the alias, but the
			// real name is still a crate path segment users write.
			if t, ok := spec.(map[string]any); ok {
				if pkg, ok := t["package"].(string); ok {
					add(pkg)
				}
			}
		}
	}
	return m
}

// Declares reports whether name is the package itself or one of its
// dependencies.
func (m *Manifest) Declares(name string) bool {
	if name == "" {
		return false
	}
	if m.Parsed {
		return m.Names[crateName(name)]
	}
	return strings.Contains(m.Raw, `name = "`+name+`"`) ||
		strings.Contains(m.Raw, `"`+name+` `)
}

func crateName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
