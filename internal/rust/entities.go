package rust

import (
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/arbor/internal/metrics"
	"github.com/jward/arbor/internal/model"
)

// entities is everything extracted from one parsed file.
type entities struct {
	functions []model.Function
	classes   []model.Class
	variables []model.Variable
	imports   []model.Import
}

func (a *Analyzer) extractEntities(p *parsedFile) entities {
	return entities{
		functions: a.extractFunctions(p),
		classes:   a.extractClasses(p),
		variables: extractVariables(p),
		imports:   a.extractImports(p),
	}
}

func (a *Analyzer) extractFunctions(p *parsedFile) []model.Function {
	var out []model.Function
	p.each(a.queries.function, func(c captures) {
		fn := c["function"]
		if fn == nil || c["function_name"] == nil || c["parameters"] == nil || c["body"] == nil {
			return
		}
		out = append(out, buildFunction(p, fn))
	})
	return out
}

// buildFunction turns a function_item or function_signature_item node into a
// Function. Signature items have no body and zero-valued body metrics.
func buildFunction(p *parsedFile, fn *sitter.Node) model.Function {
	name := p.text(fn.ChildByFieldName("name"))
	params := extractParameters(p, fn.ChildByFieldName("parameters"))
	body := fn.ChildByFieldName("body")

	f := model.Function{
		Name:       name,
		Signature:  signature(p, fn, body),
		StartLine:  line(fn),
		EndLine:    endLine(fn),
		Parameters: params,
		IsPublic:   p.isPublic(fn),
		Metrics:    model.FunctionMetrics{ParameterCount: len(params)},
	}
	if rt := fn.ChildByFieldName("return_type"); rt != nil {
		f.ReturnType = model.Ptr(p.text(rt))
	}
	if body != nil {
		text := p.text(body)
		f.Body = model.Ptr(text)
		f.Metrics.LOC = metrics.Lines(text)
		f.Metrics.Complexity, f.Metrics.CognitiveComplexity = metrics.Complexity(text)
	}
	return f
}

// signature is the declaration text up to the body with whitespace collapsed,
// e.g. "pub fn add(a: i32, b: i32) -> i32".
func signature(p *parsedFile, fn, body *sitter.Node) string {
	end := fn.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	raw := string(p.src[fn.StartByte():end])
	raw = strings.TrimSuffix(strings.TrimSpace(raw), ";")
	return strings.Join(strings.Fields(raw), " ")
}

func extractParameters(p *parsedFile, params *sitter.Node) []model.Parameter {
	var out []model.Parameter
	position := 0
	for _, c := range namedChildren(params) {
		switch c.Type() {
		case "self_parameter", "variadic_parameter":
			position++
		case "parameter":
			param := model.Parameter{
				Name:     p.text(c.ChildByFieldName("pattern")),
				Position: position,
			}
			if t := c.ChildByFieldName("type"); t != nil {
				param.ParamType = model.Ptr(p.text(t))
			}
			out = append(out, param)
			position++
		}
	}
	return out
}

func (a *Analyzer) extractImports(p *parsedFile) []model.Import {
	var out []model.Import
	p.each(a.queries.imports, func(c captures) {
		if arg := c["path"]; arg != nil {
			expandUse(p, arg, "", &out)
		}
	})
	return out
}

// expandUse flattens a use tree so that `use a::{b, c::d as e}` yields one
// Import per leaf: a::b and a::c::d (named e).
func expandUse(p *parsedFile, n *sitter.Node, prefix string, out *[]model.Import) {
	switch n.Type() {
	case "scoped_use_list":
		next := joinPath(prefix, p.text(n.ChildByFieldName("path")))
		if list := n.ChildByFieldName("list"); list != nil {
			expandUse(p, list, next, out)
		}
	case "use_list":
		for _, c := range namedChildren(n) {
			expandUse(p, c, prefix, out)
		}
	case "use_as_clause":
		path := joinPath(prefix, p.text(n.ChildByFieldName("path")))
		*out = append(*out, newImport(path, p.text(n.ChildByFieldName("alias")), line(n)))
	case "attribute_item", "line_comment", "block_comment":
	default:
		path := joinPath(prefix, p.text(n))
		*out = append(*out, newImport(path, "", line(n)))
	}
}

func newImport(path, alias string, ln int) model.Import {
	name := alias
	if name == "" {
		segs := strings.Split(path, "::")
		name = segs[len(segs)-1]
	}
	imp := model.Import{Path: path, Line: ln, IsRelative: isRelativePath(path)}
	if name != "" {
		imp.Name = model.Ptr(name)
	}
	return imp
}

func joinPath(prefix, s string) string {
	switch {
	case prefix == "":
		return s
	case s == "" || s == "self":
		return prefix
	default:
		return prefix + "::" + s
	}
}

func isRelativePath(path string) bool {
	for _, p := range []string{"crate", "self", "super"} {
		if path == p || strings.HasPrefix(path, p+"::") {
			return true
		}
	}
	return false
}

// extractVariables walks the whole tree for let bindings, consts and statics.
func extractVariables(p *parsedFile) []model.Variable {
	var out []model.Variable
	p.walk(func(n *sitter.Node) {
		switch n.Type() {
		case "let_declaration":
			pat := n.ChildByFieldName("pattern")
			if pat == nil || pat.Type() != "identifier" {
				return
			}
			out = append(out, variable(p, n, p.text(pat), false))
		case "const_item", "static_item":
			name := n.ChildByFieldName("name")
			if name == nil {
				return
			}
			out = append(out, variable(p, n, p.text(name), p.isPublic(n)))
		}
	})
	return out
}

func variable(p *parsedFile, n *sitter.Node, name string, public bool) model.Variable {
	v := model.Variable{Name: name, Line: line(n), IsPublic: public}
	if t := n.ChildByFieldName("type"); t != nil {
		v.VarType = model.Ptr(p.text(t))
	}
	if val := n.ChildByFieldName("value"); val != nil {
		v.InitValue = model.Ptr(p.text(val))
	}
	return v
}

// implInfo accumulates what impl blocks in a file contribute to a type.
type implInfo struct {
	methods []model.Function
	traits  []string
}

func (a *Analyzer) extractClasses(p *parsedFile) []model.Class {
	impls := make(map[string]*implInfo)
	p.each(a.queries.impls, func(c captures) {
		typ := c["type_name"]
		if typ == nil || c["body"] == nil {
			return
		}
		name := baseTypeName(p.text(typ))
		info := impls[name]
		if info == nil {
			info = &implInfo{}
			impls[name] = info
		}
		if tr := c["trait_name"]; tr != nil {
			info.traits = appendUnique(info.traits, baseTypeName(p.text(tr)))
		}
		for _, member := range namedChildren(c["body"]) {
			if member.Type() == "function_item" {
				info.methods = append(info.methods, buildFunction(p, member))
			}
		}
	})

	var out []model.Class
	p.each(a.queries.structs, func(c captures) {
		node, name := c["struct"], c["struct_name"]
		if node == nil || name == nil {
			return
		}
		cls := newClass(p, node, p.text(name), model.KindStruct)
		cls.Properties = structFields(p, c["body"], cls.IsPublic)
		attachImpl(&cls, impls[cls.Name])
		out = append(out, finishClass(p, node, cls))
	})
	p.each(a.queries.enums, func(c captures) {
		node, name := c["enum"], c["enum_name"]
		if node == nil || name == nil || c["body"] == nil {
			return
		}
		cls := newClass(p, node, p.text(name), model.KindEnum)
		for _, v := range namedChildren(c["body"]) {
			if v.Type() != "enum_variant" {
				continue
			}
			prop := model.Variable{
				Name:     p.text(v.ChildByFieldName("name")),
				Line:     line(v),
				IsPublic: cls.IsPublic,
			}
			if body := v.ChildByFieldName("body"); body != nil {
				prop.VarType = model.Ptr(p.text(body))
			}
			if val := v.ChildByFieldName("value"); val != nil {
				prop.InitValue = model.Ptr(p.text(val))
			}
			cls.Properties = append(cls.Properties, prop)
		}
		attachImpl(&cls, impls[cls.Name])
		out = append(out, finishClass(p, node, cls))
	})
	p.each(a.queries.traits, func(c captures) {
		node, name := c["trait"], c["trait_name"]
		if node == nil || name == nil || c["body"] == nil {
			return
		}
		cls := newClass(p, node, p.text(name), model.KindTrait)
		for _, member := range namedChildren(c["body"]) {
			switch member.Type() {
			case "function_item", "function_signature_item":
				cls.Methods = append(cls.Methods, buildFunction(p, member))
			}
		}
		for _, st := range supertraits(p, node) {
			cls.BaseClasses = append(cls.BaseClasses, p.text(st))
		}
		out = append(out, finishClass(p, node, cls))
	})
	return out
}

func newClass(p *parsedFile, node *sitter.Node, name, kind string) model.Class {
	return model.Class{
		Name:        name,
		Kind:        kind,
		StartLine:   line(node),
		EndLine:     endLine(node),
		Methods:     []model.Function{},
		Properties:  []model.Variable{},
		BaseClasses: []string{},
		IsPublic:    p.isPublic(node),
	}
}

func attachImpl(cls *model.Class, info *implInfo) {
	if info == nil {
		return
	}
	cls.Methods = append(cls.Methods, info.methods...)
	cls.BaseClasses = append(cls.BaseClasses, info.traits...)
}

func finishClass(p *parsedFile, node *sitter.Node, cls model.Class) model.Class {
	cls.Metrics = model.ClassMetrics{
		LOC:           metrics.Lines(p.text(node)),
		MethodCount:   len(cls.Methods),
		PropertyCount: len(cls.Properties),
		Cohesion:      cohesion(cls),
	}
	if len(cls.BaseClasses) > 0 {
		cls.Metrics.InheritanceDepth = 1
	}
	return cls
}

func structFields(p *parsedFile, body *sitter.Node, public bool) []model.Variable {
	out := []model.Variable{}
	if body == nil {
		return out
	}
	switch body.Type() {
	case "field_declaration_list":
		for _, f := range namedChildren(body) {
			if f.Type() != "field_declaration" {
				continue
			}
			v := model.Variable{
				Name:     p.text(f.ChildByFieldName("name")),
				Line:     line(f),
				IsPublic: p.isPublic(f),
			}
			if t := f.ChildByFieldName("type"); t != nil {
				v.VarType = model.Ptr(p.text(t))
			}
			out = append(out, v)
		}
	case "ordered_field_declaration_list":
		i := 0
		for _, f := range namedChildren(body) {
			switch f.Type() {
			case "visibility_modifier", "attribute_item", "line_comment", "block_comment":
				continue
			}
			out = append(out, model.Variable{
				Name:     strconv.Itoa(i),
				VarType:  model.Ptr(p.text(f)),
				Line:     line(f),
				IsPublic: public,
			})
			i++
		}
	}
	return out
}

var selfField = regexp.MustCompile(`\bself\.([A-Za-z_][A-Za-z0-9_]*)`)

// cohesion is the mean, over methods, of the share of properties the method
// touches through self.<field>.
func cohesion(cls model.Class) float64 {
	if len(cls.Methods) == 0 || len(cls.Properties) == 0 {
		return 0
	}
	props := make(map[string]bool, len(cls.Properties))
	for _, p := range cls.Properties {
		props[p.Name] = true
	}
	var total float64
	for _, m := range cls.Methods {
		if m.Body == nil {
			continue
		}
		used := make(map[string]bool)
		for _, match := range selfField.FindAllStringSubmatch(*m.Body, -1) {
			if props[match[1]] {
				used[match[1]] = true
			}
		}
		total += float64(len(used)) / float64(len(props))
	}
	return total / float64(len(cls.Methods))
}

// supertraits returns the type nodes listed in a trait's bounds, skipping
// lifetimes and ?Sized style modifiers.
func supertraits(p *parsedFile, trait *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, b := range namedChildren(trait.ChildByFieldName("bounds")) {
		switch b.Type() {
		case "type_identifier", "scoped_type_identifier":
			out = append(out, b)
		case "generic_type":
			if t := b.ChildByFieldName("type"); t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// baseTypeName strips generic arguments and reference sigils:
// "&mut Vec<T>" -> "Vec", "fmt::Display" stays as is.
func baseTypeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "&")
	s = strings.TrimPrefix(strings.TrimSpace(s), "mut ")
	s = strings.TrimPrefix(s, "dyn ")
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func appendUnique(xs []string, s string) []string {
	for _, x := range xs {
		if x == s {
			return xs
		}
	}
	return append(xs, s)
}
