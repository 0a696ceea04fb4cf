// Package syntax wraps tree-sitter parsing for the JavaScript family and
// provides the node helpers the analysis layers share: content extraction,
// property-path flattening, bounded ancestor walks, and source locations.
package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies the grammar used to parse a source unit.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// LanguageForPath routes a file to a grammar by extension. HTML documents are
// handled separately; the scripts extracted from them parse as JavaScript.
func LanguageForPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	}
	return "", false
}

func grammarFor(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	}
	return nil, fmt.Errorf("unsupported language %q", lang)
}

// Tree owns a parsed syntax tree together with the source bytes its nodes
// index into. Callers must Close it to release the native allocations.
type Tree struct {
	Lang   Language
	Source []byte
	tree   *sitter.Tree
}

// Parse parses src with the grammar for lang.
func Parse(ctx context.Context, src []byte, lang Language) (*Tree, error) {
	grammar, err := grammarFor(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s source: %w", lang, err)
	}
	return &Tree{Lang: lang, Source: src, tree: tree}, nil
}

// Root returns the root node of the parsed tree, or nil once closed.
func (t *Tree) Root() *sitter.Node {
	if t.tree == nil {
		return nil
	}
	return t.tree.RootNode()
}

// HasError reports whether the parse produced any error nodes. Analysis still
// runs on such trees; results near the damaged regions are best-effort.
func (t *Tree) HasError() bool {
	if t.tree == nil {
		return false
	}
	return t.tree.RootNode().HasError()
}

// Close releases the tree's native resources. Safe to call more than once.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}
