package rust

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/arbor/internal/model"
	"github.com/jward/arbor/internal/resolve"
)

// depBuilder accumulates dependency edges for a single source file.
type depBuilder struct {
	source string
	deps   []model.Dependency
}

func (b *depBuilder) add(typ model.DependencyType, res resolve.Resolution, ln int, info string) {
	b.deps = append(b.deps, model.Dependency{
		Source:     b.source,
		Target:     res.Path,
		Type:       typ,
		Line:       model.Ptr(ln),
		Info:       model.Ptr(info),
		Resolution: res.Kind,
	})
}

func (b *depBuilder) local() resolve.Resolution {
	return resolve.Resolution{Path: b.source, Kind: model.Self}
}

// extractDependencies emits every edge leaving the file: imports, calls,
// type references, impl blocks, member types and supertraits.
func (a *Analyzer) extractDependencies(p *parsedFile, imports []model.Import) []model.Dependency {
	b := &depBuilder{source: p.path}

	for _, imp := range imports {
		b.add(model.DepImport, a.resolver.Resolve(imp.Path, p.path), imp.Line, "Import: "+imp.Path)
	}

	a.callDependencies(p, b)
	a.typeDependencies(p, b)
	a.implDependencies(p, b)
	a.memberDependencies(p, b)
	a.supertraitDependencies(p, b)

	if b.deps == nil {
		return []model.Dependency{}
	}
	return b.deps
}

func (a *Analyzer) callDependencies(p *parsedFile, b *depBuilder) {
	p.each(a.queries.calls, func(c captures) {
		if fn := c["method_name"]; fn != nil {
			b.add(model.DepFunctionCall, b.local(), line(fn), "Local function call: "+p.text(fn))
			return
		}
		fn := c["function_name"]
		if fn == nil {
			return
		}
		name := p.text(fn)
		if mod := c["module_name"]; mod != nil {
			module := p.text(mod)
			b.add(model.DepFunctionCall, a.resolver.ResolveModule(module, p.path), line(fn),
				fmt.Sprintf("Function call: %s::%s", module, name))
			return
		}
		b.add(model.DepFunctionCall, b.local(), line(fn), "Local function call: "+name)
	})
}

// definitionParents are node kinds whose name field is a type_identifier that
// declares rather than references a type.
var definitionParents = map[string]bool{
	"struct_item": true,
	"enum_item":   true,
	"union_item":  true,
	"trait_item":  true,
	"type_item":   true,
}

func (a *Analyzer) typeDependencies(p *parsedFile, b *depBuilder) {
	p.each(a.queries.typeRefs, func(c captures) {
		n := c["type_name"]
		if n == nil || isDefinitionName(n) {
			return
		}
		name := p.text(n)
		if skipType(name) {
			return
		}
		b.add(model.DepTypeUsage, a.resolver.ResolveType(name, p.path), line(n), "Type reference: "+name)
	})
}

func isDefinitionName(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch {
	case definitionParents[parent.Type()]:
		name := parent.ChildByFieldName("name")
		return name != nil && name.StartByte() == n.StartByte() && name.EndByte() == n.EndByte()
	case parent.Type() == "type_parameters", parent.Type() == "constrained_type_parameter":
		return true
	}
	return false
}

func skipType(name string) bool {
	return name == "" || name == "Self" || resolve.Primitives[name]
}

func (a *Analyzer) implDependencies(p *parsedFile, b *depBuilder) {
	p.each(a.queries.impls, func(c captures) {
		typNode := c["type_name"]
		if typNode == nil {
			return
		}
		typ := baseTypeName(p.text(typNode))
		if trNode := c["trait_name"]; trNode != nil {
			tr := baseTypeName(p.text(trNode))
			b.add(model.DepImplementation, a.resolver.ResolveType(tr, p.path), line(trNode),
				fmt.Sprintf("Trait implementation: %s for %s", tr, typ))
			b.add(model.DepImplementation, a.resolver.ResolveType(typ, p.path), line(typNode),
				"Type implementation: "+typ)
			return
		}
		b.add(model.DepImplementation, a.resolver.ResolveType(typ, p.path), line(typNode),
			"Implementation for: "+typ)
	})
}

// memberDependencies emits TypeUsage edges for every type named inside struct
// field types and enum variant payloads.
func (a *Analyzer) memberDependencies(p *parsedFile, b *depBuilder) {
	p.each(a.queries.structs, func(c captures) {
		body := c["body"]
		if body == nil {
			return
		}
		for _, member := range namedChildren(body) {
			var typeNodes []*sitter.Node
			switch member.Type() {
			case "field_declaration":
				typeNodes = descendants(member.ChildByFieldName("type"), "type_identifier")
			case "visibility_modifier", "attribute_item", "line_comment", "block_comment":
				continue
			default:
				// Tuple struct members are bare type nodes.
				typeNodes = descendants(member, "type_identifier")
			}
			a.addMemberTypes(p, b, typeNodes, "Field type: ")
		}
	})
	p.each(a.queries.enums, func(c captures) {
		for _, v := range namedChildren(c["body"]) {
			if v.Type() != "enum_variant" {
				continue
			}
			a.addMemberTypes(p, b, descendants(v.ChildByFieldName("body"), "type_identifier"), "Enum variant type: ")
		}
	})
}

func (a *Analyzer) addMemberTypes(p *parsedFile, b *depBuilder, nodes []*sitter.Node, prefix string) {
	for _, n := range nodes {
		name := p.text(n)
		if skipType(name) {
			continue
		}
		b.add(model.DepTypeUsage, a.resolver.ResolveType(name, p.path), line(n), prefix+name)
	}
}

func (a *Analyzer) supertraitDependencies(p *parsedFile, b *depBuilder) {
	p.each(a.queries.traits, func(c captures) {
		trait := c["trait"]
		if trait == nil {
			return
		}
		name := p.text(c["trait_name"])
		for _, st := range supertraits(p, trait) {
			super := p.text(st)
			b.add(model.DepInheritance, a.resolver.ResolveType(super, p.path), line(st),
				fmt.Sprintf("Supertrait: %s of %s", super, name))
		}
	})
}
