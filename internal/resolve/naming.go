package resolve

import (
	"strings"
	"unicode"
)

// SnakeCase converts a PascalCase type name to the snake_case file stem
// conventionally used for it. Runs of capitals are not split, so
// "HTTPServer" becomes "httpserver".
func SnakeCase(s string) string {
	var b strings.Builder
	prevUpper := true
	for _, r := range s {
		if unicode.IsUpper(r) {
			if !prevUpper && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevUpper = true
			continue
		}
		b.WriteRune(r)
		prevUpper = false
	}
	return b.String()
}

// StdTypes are common standard library types resolved to the synthetic
// standard library path.
var StdTypes = map[string]bool{
	"String":   true,
	"Vec":      true,
	"HashMap":  true,
	"BTreeMap": true,
	"HashSet":  true,
	"BTreeSet": true,
	"Option":   true,
	"Result":   true,
	"Box":      true,
	"Rc":       true,
	"Arc":      true,
	"Cell":     true,
	"RefCell":  true,
	"Mutex":    true,
	"RwLock":   true,
	"Cow":      true,
	"PathBuf":  true,
	"Path":     true,
}

// Primitives are builtin type names that never produce dependencies.
var Primitives = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true,
	"bool": true, "char": true, "str": true, "String": true,
}

var stdNamespaces = map[string]bool{
	"std":   true,
	"core":  true,
	"alloc": true,
}

// splitPath splits a "::" separated reference into its segments, dropping a
// leading "::", empty segments and a trailing glob.
func splitPath(ref string) []string {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "::")
	var out []string
	for _, p := range strings.Split(ref, "::") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if n := len(out); n > 0 && out[n-1] == "*" {
		out = out[:n-1]
	}
	return out
}
