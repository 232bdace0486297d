package rust

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Query templates, one per entity kind. Capture names are the contract
// between a template and its extractor.
const (
	functionQuery = `
(function_item
  name: (identifier) @function_name
  parameters: (parameters) @parameters
  body: (block) @body
  (#match? @function_name "^(r#)?[a-zA-Z_][a-zA-Z0-9_]*$")) @function`

	importQuery = `
(use_declaration
  argument: (_) @path) @use`

	structQuery = `
(struct_item
  name: (type_identifier) @struct_name
  body: (_)? @body) @struct`

	enumQuery = `
(enum_item
  name: (type_identifier) @enum_name
  body: (enum_variant_list) @body) @enum`

	traitQuery = `
(trait_item
  name: (type_identifier) @trait_name
  body: (declaration_list) @body) @trait`

	implQuery = `
(impl_item
  trait: (_)? @trait_name
  type: (_) @type_name
  body: (declaration_list) @body) @impl`

	callQuery = `
(call_expression
  function: (identifier) @function_name) @call

(call_expression
  function: (field_expression
    field: (field_identifier) @method_name)) @call

(call_expression
  function: (scoped_identifier
    path: (_)? @module_name
    name: (identifier) @function_name)) @call`

	typeRefQuery = `(type_identifier) @type_name`
)

// queries holds the compiled templates. Compiled queries are immutable and
// shared across goroutines; cursors are not.
type queries struct {
	function *sitter.Query
	imports  *sitter.Query
	structs  *sitter.Query
	enums    *sitter.Query
	traits   *sitter.Query
	impls    *sitter.Query
	calls    *sitter.Query
	typeRefs *sitter.Query
}

func compileQueries(lang *sitter.Language) (*queries, error) {
	q := &queries{}
	for _, c := range []struct {
		name    string
		pattern string
		dst     **sitter.Query
	}{
		{"function", functionQuery, &q.function},
		{"import", importQuery, &q.imports},
		{"struct", structQuery, &q.structs},
		{"enum", enumQuery, &q.enums},
		{"trait", traitQuery, &q.traits},
		{"impl", implQuery, &q.impls},
		{"call", callQuery, &q.calls},
		{"type reference", typeRefQuery, &q.typeRefs},
	} {
		compiled, err := sitter.NewQuery([]byte(c.pattern), lang)
		if err != nil {
			q.close()
			return nil, fmt.Errorf("rust: compile %s query: %w", c.name, err)
		}
		*c.dst = compiled
	}
	return q, nil
}

func (q *queries) close() {
	for _, c := range []*sitter.Query{
		q.function, q.imports, q.structs, q.enums, q.traits, q.impls, q.calls, q.typeRefs,
	} {
		if c != nil {
			c.Close()
		}
	}
}
