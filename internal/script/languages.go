package script

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToGrammar maps file extensions to grammar names.
var extToGrammar = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".php":  "php",
	".rb":   "ruby",
}

// grammars maps grammar names to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"go":         golang.GetLanguage(),
			"typescript": ts.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"python":     python.GetLanguage(),
			"rust":       rust.GetLanguage(),
			"c":          c.GetLanguage(),
			"cpp":        cpp.GetLanguage(),
			"java":       java.GetLanguage(),
			"php":        php.GetLanguage(),
			"ruby":       ruby.GetLanguage(),
		}
	})
}

// GrammarForFile returns the grammar name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func GrammarForFile(path string) (string, bool) {
	g, ok := extToGrammar[strings.ToLower(filepath.Ext(path))]
	return g, ok
}

// Grammar returns the tree-sitter Language for a grammar name.
// Returns (nil, false) if the grammar is not bundled.
func Grammar(name string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := grammars[name]
	return l, ok
}

// Grammars returns the bundled grammar names, sorted.
func Grammars() []string {
	initGrammars()
	names := make([]string, 0, len(grammars))
	for n := range grammars {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// DefaultExtensions returns the extensions (without dot, sorted) that map to
// grammar.
func DefaultExtensions(grammar string) []string {
	var out []string
	for ext, g := range extToGrammar {
		if g == grammar {
			out = append(out, strings.TrimPrefix(ext, "."))
		}
	}
	slices.Sort(out)
	return out
}
