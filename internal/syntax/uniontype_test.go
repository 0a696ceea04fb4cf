// File: internal/syntax/uniontype_test.go
package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sitter "github.com/smacker/go-tree-sitter"
)

func parseTS(t *testing.T, code string) *Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(code), LangTypeScript)
	require.NoError(t, err)
	require.False(t, tree.HasError(), "fixture must parse cleanly:\n%s", code)
	t.Cleanup(tree.Close)
	return tree
}

// identifierUse finds the n-th occurrence of an identifier with the given
// text.
func identifierUse(t *testing.T, tree *Tree, name string, n int) *sitter.Node {
	t.Helper()
	var found *sitter.Node
	seen := 0
	Walk(tree.Root(), func(node *sitter.Node) bool {
		if found != nil {
			return false
		}
		if node.Type() == "identifier" && NodeContent(node, tree.Source) == name {
			if seen == n {
				found = node
				return false
			}
			seen++
		}
		return true
	})
	require.NotNil(t, found, "no identifier %q #%d", name, n)
	return found
}

func TestUnionResolverParameter(t *testing.T) {
	code := `
function set(obj: Record<string, number>, key: "height" | "width") {
	obj[key] = 1;
}
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)
	require.NotNil(t, r)

	// #0 is the parameter itself, #1 the use inside the subscript.
	use := identifierUse(t, tree, "key", 1)
	members, ok := r.StringLiteralUnion(use)
	require.True(t, ok)
	assert.Equal(t, []string{"height", "width"}, members)
}

func TestUnionResolverDeclaration(t *testing.T) {
	code := `
const mode: "read" | "write" | "append" = pick();
handlers[mode]();
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)

	use := identifierUse(t, tree, "mode", 1)
	members, ok := r.StringLiteralUnion(use)
	require.True(t, ok)
	assert.Equal(t, []string{"read", "write", "append"}, members)
}

func TestUnionResolverSingleLiteral(t *testing.T) {
	code := `
function tag(label: "fixed") {
	out[label] = 1;
}
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)

	use := identifierUse(t, tree, "label", 1)
	members, ok := r.StringLiteralUnion(use)
	require.True(t, ok)
	assert.Equal(t, []string{"fixed"}, members)
}

func TestUnionResolverRejectsWideTypes(t *testing.T) {
	code := `
function set(obj: object, key: string) {
	obj[key] = 1;
}
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)

	use := identifierUse(t, tree, "key", 1)
	_, ok := r.StringLiteralUnion(use)
	assert.False(t, ok, "a plain string type proves nothing about the key set")
}

func TestUnionResolverRejectsMixedUnions(t *testing.T) {
	code := `
function set(obj: object, key: "a" | number) {
	obj[key] = 1;
}
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)

	use := identifierUse(t, tree, "key", 1)
	_, ok := r.StringLiteralUnion(use)
	assert.False(t, ok, "a non-string member poisons the union")
}

func TestUnionResolverUntypedIdentifier(t *testing.T) {
	code := `
function set(obj, key) {
	obj[key] = 1;
}
`
	tree := parseTS(t, code)
	r := NewUnionResolver(tree)

	use := identifierUse(t, tree, "key", 1)
	_, ok := r.StringLiteralUnion(use)
	assert.False(t, ok)
}

func TestUnionResolverNilForJavaScript(t *testing.T) {
	tree := parseJS(t, `obj[key] = 1;`)
	r := NewUnionResolver(tree)
	assert.Nil(t, r)

	// A nil resolver still answers queries without panicking.
	use := identifierUse(t, tree, "key", 0)
	_, ok := r.StringLiteralUnion(use)
	assert.False(t, ok)
}
