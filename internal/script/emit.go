package script

import (
	"context"
	"fmt"
	"sync"

	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/model"
)

// collector receives the records a script emits for one file. Risor scripts
// cannot construct Go structs, so the emit functions accept maps with
// primitive values and build the model types Go-side.
type collector struct {
	path string

	mu        sync.Mutex
	functions []model.Function
	classes   []model.Class
	variables []model.Variable
	imports   []model.Import
	deps      []model.Dependency
	// complexity holds explicit per-function complexities, index-aligned with
	// functions; -1 means compute from the body.
	complexity []int
}

func (c *collector) globals() map[string]any {
	return map[string]any{
		"emit_function":   c.builtin("emit_function", c.emitFunction),
		"emit_class":      c.builtin("emit_class", c.emitClass),
		"emit_variable":   c.builtin("emit_variable", c.emitVariable),
		"emit_import":     c.builtin("emit_import", c.emitImport),
		"emit_dependency": c.builtin("emit_dependency", c.emitDependency),
	}
}

// builtin wraps a map-taking emitter as a one-argument host function.
func (c *collector) builtin(name string, emit func(map[string]object.Object) error) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := emit(m); err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return object.Nil
	})
}

func (c *collector) emitFunction(m map[string]object.Object) error {
	f, err := toFunction(m)
	if err != nil {
		return err
	}
	c.functions = append(c.functions, f)
	cx := -1
	if v, ok := getOptionalInt(m, "complexity"); ok {
		cx = v
	}
	c.complexity = append(c.complexity, cx)
	return nil
}

func toFunction(m map[string]object.Object) (model.Function, error) {
	name := getString(m, "name")
	if name == "" {
		return model.Function{}, fmt.Errorf("name is required")
	}
	start := getInt(m, "start_line")
	end := getInt(m, "end_line")
	if end < start {
		end = start
	}
	f := model.Function{
		Name:       name,
		Signature:  getString(m, "signature"),
		StartLine:  start,
		EndLine:    end,
		Body:       getOptionalString(m, "body"),
		ReturnType: getOptionalString(m, "return_type"),
		Parameters: []model.Parameter{},
		IsPublic:   getBool(m, "is_public"),
	}
	if f.Signature == "" {
		f.Signature = name
	}
	if list, ok := m["parameters"].(*object.List); ok {
		for i, item := range list.Value() {
			pm, err := extractMap(item)
			if err != nil {
				return model.Function{}, fmt.Errorf("parameters[%d]: %w", i, err)
			}
			pos := i
			if v, ok := getOptionalInt(pm, "position"); ok {
				pos = v
			}
			f.Parameters = append(f.Parameters, model.Parameter{
				Name:         getString(pm, "name"),
				ParamType:    getOptionalString(pm, "type"),
				DefaultValue: getOptionalString(pm, "default"),
				Position:     pos,
			})
		}
	}
	f.Metrics.ParameterCount = len(f.Parameters)
	return f, nil
}

func (c *collector) emitClass(m map[string]object.Object) error {
	name := getString(m, "name")
	if name == "" {
		return fmt.Errorf("name is required")
	}
	kind := getString(m, "kind")
	if kind == "" {
		kind = model.KindStruct
	}
	cls := model.Class{
		Name:        name,
		Kind:        kind,
		StartLine:   getInt(m, "start_line"),
		EndLine:     getInt(m, "end_line"),
		Methods:     []model.Function{},
		Properties:  []model.Variable{},
		BaseClasses: getStrings(m, "base_classes"),
		IsPublic:    getBool(m, "is_public"),
	}
	if list, ok := m["methods"].(*object.List); ok {
		for i, item := range list.Value() {
			mm, err := extractMap(item)
			if err != nil {
				return fmt.Errorf("methods[%d]: %w", i, err)
			}
			fn, err := toFunction(mm)
			if err != nil {
				return fmt.Errorf("methods[%d]: %w", i, err)
			}
			cls.Methods = append(cls.Methods, fn)
		}
	}
	if list, ok := m["properties"].(*object.List); ok {
		for i, item := range list.Value() {
			pm, err := extractMap(item)
			if err != nil {
				return fmt.Errorf("properties[%d]: %w", i, err)
			}
			cls.Properties = append(cls.Properties, toVariable(pm))
		}
	}
	c.classes = append(c.classes, cls)
	return nil
}

func toVariable(m map[string]object.Object) model.Variable {
	return model.Variable{
		Name:      getString(m, "name"),
		VarType:   getOptionalString(m, "type"),
		Line:      getInt(m, "line"),
		IsPublic:  getBool(m, "is_public"),
		InitValue: getOptionalString(m, "value"),
	}
}

func (c *collector) emitVariable(m map[string]object.Object) error {
	v := toVariable(m)
	if v.Name == "" {
		return fmt.Errorf("name is required")
	}
	c.variables = append(c.variables, v)
	return nil
}

func (c *collector) emitImport(m map[string]object.Object) error {
	path := getString(m, "path")
	if path == "" {
		return fmt.Errorf("path is required")
	}
	c.imports = append(c.imports, model.Import{
		Path:       path,
		Name:       getOptionalString(m, "name"),
		Line:       getInt(m, "line"),
		IsRelative: getBool(m, "is_relative"),
	})
	return nil
}

// emitDependency records an edge from the analyzed file. An empty target
// points back at the file itself.
func (c *collector) emitDependency(m map[string]object.Object) error {
	typ := model.DependencyType(getString(m, "type"))
	if !typ.Valid() {
		return fmt.Errorf("unknown dependency type %q", typ)
	}
	d := model.Dependency{
		Source:     c.path,
		Target:     getString(m, "target"),
		Type:       typ,
		Info:       getOptionalString(m, "info"),
		Resolution: model.Resolution(getString(m, "resolution")),
	}
	if ln, ok := getOptionalInt(m, "line"); ok {
		d.Line = model.Ptr(ln)
	}
	if d.Target == "" {
		d.Target = c.path
		d.Resolution = model.Self
	}
	if d.Resolution == "" {
		d.Resolution = model.BestGuess
	}
	c.deps = append(c.deps, d)
	return nil
}

// --- Risor value helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

// getOptionalString returns nil for missing, nil-valued or empty entries.
func getOptionalString(m map[string]object.Object, key string) *string {
	if s := getString(m, key); s != "" {
		return &s
	}
	return nil
}

func getInt(m map[string]object.Object, key string) int {
	v, _ := getOptionalInt(m, key)
	return v
}

func getOptionalInt(m map[string]object.Object, key string) (int, bool) {
	switch v := m[key].(type) {
	case *object.Int:
		return int(v.Value()), true
	case *object.Float:
		return int(v.Value()), true
	}
	return 0, false
}

func getBool(m map[string]object.Object, key string) bool {
	if b, ok := m[key].(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func getStrings(m map[string]object.Object, key string) []string {
	out := []string{}
	list, ok := m[key].(*object.List)
	if !ok {
		return out
	}
	for _, item := range list.Value() {
		if s, ok := item.(*object.String); ok {
			out = append(out, s.Value())
		}
	}
	return out
}
