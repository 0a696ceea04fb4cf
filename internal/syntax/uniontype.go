// File: internal/syntax/uniontype.go
package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// unionResolveHops bounds the upward walk when searching for the
// declaration that types an identifier.
const unionResolveHops = 64

// UnionResolver answers literal-union type queries against a TypeScript
// tree. It resolves an identifier to its nearest typed declaration or
// parameter and reads the annotation; only unions made up entirely of
// string literals are reported. JavaScript trees have no annotations, so
// NewUnionResolver returns nil for them and callers treat a nil resolver
// as "no type information".
type UnionResolver struct {
	tree *Tree
}

// NewUnionResolver builds a resolver for t, or nil when the language
// carries no type annotations.
func NewUnionResolver(t *Tree) *UnionResolver {
	if t == nil || t.Lang == LangJavaScript {
		return nil
	}
	return &UnionResolver{tree: t}
}

// StringLiteralUnion resolves node (an identifier) to its declared type and
// returns the members when that type is a union of string literals. A
// single string-literal type counts as a union of one. Any non-literal
// member, or no annotation at all, yields ok=false.
func (r *UnionResolver) StringLiteralUnion(node *sitter.Node) ([]string, bool) {
	if r == nil || node == nil || node.Type() != "identifier" {
		return nil, false
	}
	name := NodeContent(node, r.tree.Source)
	if name == "" {
		return nil, false
	}

	annotation := r.findAnnotation(node, name)
	if annotation == nil {
		return nil, false
	}
	return literalUnionMembers(annotation.NamedChild(0), r.tree.Source)
}

// findAnnotation walks outward from the use site looking for the nearest
// declaration or parameter that binds name with a type annotation.
func (r *UnionResolver) findAnnotation(node *sitter.Node, name string) *sitter.Node {
	for anc := range Ancestors(node, unionResolveHops) {
		switch anc.Type() {
		case "statement_block", "program":
			if ann := r.scanDeclarations(anc, name); ann != nil {
				return ann
			}
		case "function_declaration", "function", "arrow_function",
			"generator_function", "generator_function_declaration", "method_definition":
			if ann := r.scanParameters(anc, name); ann != nil {
				return ann
			}
			return nil
		}
	}
	return nil
}

func (r *UnionResolver) scanDeclarations(block *sitter.Node, name string) *sitter.Node {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt == nil {
			continue
		}
		if stmt.Type() != "variable_declaration" && stmt.Type() != "lexical_declaration" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			d := stmt.NamedChild(j)
			if d == nil || d.Type() != "variable_declarator" {
				continue
			}
			nameNode := d.ChildByFieldName("name")
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			if NodeContent(nameNode, r.tree.Source) != name {
				continue
			}
			if ann := d.ChildByFieldName("type"); ann != nil {
				return ann
			}
			return nil
		}
	}
	return nil
}

func (r *UnionResolver) scanParameters(fn *sitter.Node, name string) *sitter.Node {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		if p.Type() != "required_parameter" && p.Type() != "optional_parameter" {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil || pattern.Type() != "identifier" {
			continue
		}
		if NodeContent(pattern, r.tree.Source) != name {
			continue
		}
		return p.ChildByFieldName("type")
	}
	return nil
}

// literalUnionMembers reads a type node and extracts its string-literal
// members. Parenthesized types unwrap; anything that is not a string
// literal poisons the result.
func literalUnionMembers(typeNode *sitter.Node, source []byte) ([]string, bool) {
	if typeNode == nil {
		return nil, false
	}
	switch typeNode.Type() {
	case "parenthesized_type":
		return literalUnionMembers(typeNode.NamedChild(0), source)

	case "literal_type":
		value, ok := stringMember(typeNode, source)
		if !ok {
			return nil, false
		}
		return []string{value}, true

	case "union_type":
		members := make([]string, 0, typeNode.NamedChildCount())
		for i := 0; i < int(typeNode.NamedChildCount()); i++ {
			child := typeNode.NamedChild(i)
			if child == nil {
				continue
			}
			if child.Type() == "union_type" || child.Type() == "parenthesized_type" {
				nested, ok := literalUnionMembers(child, source)
				if !ok {
					return nil, false
				}
				members = append(members, nested...)
				continue
			}
			value, ok := stringMember(child, source)
			if !ok {
				return nil, false
			}
			members = append(members, value)
		}
		if len(members) == 0 {
			return nil, false
		}
		return members, true
	}
	return nil, false
}

func stringMember(typeNode *sitter.Node, source []byte) (string, bool) {
	if typeNode == nil || typeNode.Type() != "literal_type" {
		return "", false
	}
	return StringLiteralValue(typeNode.NamedChild(0), source)
}
