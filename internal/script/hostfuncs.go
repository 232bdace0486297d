package script

import (
	"context"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// sourceStore tracks source bytes and language for each tree parsed during
// one script run. node_text and query need to recover source/language from a
// Node, but smacker/go-tree-sitter doesn't expose Node.Tree(), so mappings are
// keyed by root node pointer.
type sourceStore struct {
	mu      sync.RWMutex
	sources map[uintptr][]byte
	langs   map[uintptr]*sitter.Language
	trees   []*sitter.Tree
}

func newSourceStore() *sourceStore {
	return &sourceStore{
		sources: make(map[uintptr][]byte),
		langs:   make(map[uintptr]*sitter.Language),
	}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.sources[key] = src
	s.langs[key] = lang
	s.trees = append(s.trees, tree)
	s.mu.Unlock()
}

// close releases every tree parsed during the run.
func (s *sourceStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trees {
		t.Close()
	}
	s.trees = nil
	clear(s.sources)
	clear(s.langs)
}

// rootOf walks a node up to its root via Parent().
func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) sourceForNode(node *sitter.Node) ([]byte, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	src, ok := s.sources[key]
	s.mu.RUnlock()
	return src, ok
}

func (s *sourceStore) languageForNode(node *sitter.Node) (*sitter.Language, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	lang, ok := s.langs[key]
	s.mu.RUnlock()
	return lang, ok
}

// makeParseSrcFn creates "parse_src".
//
// parse_src(source, grammar) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}

		srcStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_src: source must be a string, got %s", args[0].Type())
		}

		langStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("parse_src: grammar must be a string, got %s", args[1].Type())
		}

		return parseSource(ctx, ss, []byte(srcStr.Value()), langStr.Value())
	})
}

func parseSource(ctx context.Context, ss *sourceStore, src []byte, grammar string) object.Object {
	lang, found := Grammar(grammar)
	if !found {
		return object.Errorf("parse_src: unsupported grammar %q", grammar)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse_src: tree-sitter parse failed: %v", err)
	}

	ss.store(tree, src, lang)

	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse_src: proxy error: %v", err)
	}
	return proxy
}

// nodeArg unwraps a proxied *sitter.Node argument.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// makeNodeTextFn creates "node_text".
//
// node_text(node) → string
//
// Exists because Risor's proxy system cannot convert strings to []byte
// for node.Content([]byte).
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}

		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// makeQueryFn creates "query".
//
// query(pattern, node) → []map[string]Node
//
// Each map has capture names as keys and proxied Nodes as values.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}

		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}

		lang, found := ss.languageForNode(node)
		if !found {
			return object.Errorf("query: no language found for node's tree")
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := sitter.NewQuery([]byte(patternStr.Value()), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)
			if len(match.Captures) == 0 {
				continue
			}

			matchMap := make(map[string]object.Object, len(match.Captures))
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				nodeP, err := object.NewProxy(capture.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				matchMap[name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child", a wrapper for ChildByFieldName that
// returns Risor nil instead of a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		fieldStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("node_child: field must be a string, got %s", args[1].Type())
		}

		child := node.ChildByFieldName(fieldStr.Value())
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// logObject provides log.Info/Warn/Error methods for scripts, forwarding to
// the analyzer's structured logger.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
