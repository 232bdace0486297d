package rust

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// parsedFile owns a syntax tree and the source it was built from. Every
// extractor borrows nodes from it; nodes must not outlive close.
type parsedFile struct {
	path string
	src  []byte
	tree *sitter.Tree
	root *sitter.Node
}

// parse builds a tree for src. Parsers are not goroutine-safe, so each call
// creates its own.
func parse(ctx context.Context, lang *sitter.Language, path string, src []byte) (*parsedFile, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("%w: %s: no tree", ErrParse, path)
	}
	return &parsedFile{path: path, src: src, tree: tree, root: tree.RootNode()}, nil
}

func (p *parsedFile) close() {
	p.tree.Close()
}

func (p *parsedFile) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.src)
}

// captures maps capture names to the nodes of a single match.
type captures map[string]*sitter.Node

// each runs q over the whole tree and calls fn once per match that survives
// predicate filtering.
func (p *parsedFile) each(q *sitter.Query, fn func(captures)) {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, p.root)

	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, p.src)
		if len(m.Captures) == 0 {
			continue
		}
		caps := make(captures, len(m.Captures))
		for _, c := range m.Captures {
			caps[q.CaptureNameForId(c.Index)] = c.Node
		}
		fn(caps)
	}
}

// walk visits every node depth-first in source order using an explicit stack.
func (p *parsedFile) walk(fn func(*sitter.Node)) {
	stack := []*sitter.Node{p.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
}

// line returns the 1-based start line of n.
func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// namedChildren returns the named children of n.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// descendants returns every node below n (n included) whose type is kind.
func descendants(n *sitter.Node, kind string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type() == kind {
			out = append(out, cur)
		}
		for i := int(cur.ChildCount()) - 1; i >= 0; i-- {
			if c := cur.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return out
}

var declarationKinds = map[string]bool{
	"function_item":           true,
	"function_signature_item": true,
	"struct_item":             true,
	"enum_item":               true,
	"union_item":              true,
	"trait_item":              true,
	"impl_item":               true,
	"const_item":              true,
	"static_item":             true,
	"type_item":               true,
	"mod_item":                true,
	"field_declaration":       true,
	"let_declaration":         true,
}

// isPublic reports whether the nearest declaration-level ancestor of n
// (n included) carries a visibility modifier containing "pub".
func (p *parsedFile) isPublic(n *sitter.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if !declarationKinds[cur.Type()] {
			continue
		}
		for i := 0; i < int(cur.ChildCount()); i++ {
			c := cur.Child(i)
			if c != nil && c.Type() == "visibility_modifier" {
				return strings.Contains(p.text(c), "pub")
			}
		}
		return false
	}
	return false
}
