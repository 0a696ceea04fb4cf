// File: internal/syntax/tree_test.go
package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageForPath(t *testing.T) {
	cases := []struct {
		path string
		want Language
		ok   bool
	}{
		{"app.js", LangJavaScript, true},
		{"component.jsx", LangJavaScript, true},
		{"worker.mjs", LangJavaScript, true},
		{"legacy.cjs", LangJavaScript, true},
		{"service.ts", LangTypeScript, true},
		{"view.tsx", LangTSX, true},
		{"UPPER.JS", LangJavaScript, true},
		{"styles.css", "", false},
		{"noext", "", false},
	}
	for _, tc := range cases {
		got, ok := LanguageForPath(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.path)
		}
	}
}

func TestParseJavaScript(t *testing.T) {
	tree, err := Parse(context.Background(), []byte(`const x = 1;`), LangJavaScript)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "program", root.Type())
	assert.False(t, tree.HasError())
}

func TestParseTypeScriptAnnotations(t *testing.T) {
	code := `const key: "a" | "b" = pick();`

	tree, err := Parse(context.Background(), []byte(code), LangTypeScript)
	require.NoError(t, err)
	defer tree.Close()
	assert.False(t, tree.HasError())

	// The same source is not valid under the JavaScript grammar.
	jsTree, err := Parse(context.Background(), []byte(code), LangJavaScript)
	require.NoError(t, err)
	defer jsTree.Close()
	assert.True(t, jsTree.HasError())
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	tree, err := Parse(context.Background(), []byte(`function {{{`), LangJavaScript)
	require.NoError(t, err)
	defer tree.Close()

	assert.True(t, tree.HasError(), "malformed input parses with error nodes, not a failure")
}

func TestCloseIsIdempotent(t *testing.T) {
	tree, err := Parse(context.Background(), []byte(`x`), LangJavaScript)
	require.NoError(t, err)

	tree.Close()
	tree.Close()
	assert.Nil(t, tree.Root())
}
