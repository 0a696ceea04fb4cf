// File: internal/analysis/core/suppress.go
package core

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/lancet/internal/syntax"
)

// ShouldSuppress decides whether a would-be finding at node is silenced by
// an explicit safety marker. Two signals are honored: an annotation in the
// doc comment attached to the enclosing statement or function, and the node
// being an argument to a call whose callee is on the trusted list. Strict
// mode disables both and forces reporting. The check is pure: it neither
// records state nor depends on evaluation order.
func ShouldSuppress(node *sitter.Node, ctx *AnalysisContext) (bool, string) {
	if node == nil || ctx.Policy.StrictMode {
		return false, ""
	}

	if marker, ok := annotationFor(node, ctx); ok {
		return true, `annotation "` + marker + `"`
	}
	if callee, ok := insideTrustedCall(node, ctx); ok {
		return true, `trusted callee "` + callee + `"`
	}
	return false, ""
}

// annotationFor looks for a suppression marker in the comments attached to
// the node, its enclosing statements, and its enclosing functions.
func annotationFor(node *sitter.Node, ctx *AnalysisContext) (string, bool) {
	if ctx.Cats.Annotations.Len() == 0 {
		return "", false
	}

	if marker, ok := commentMarker(node, ctx); ok {
		return marker, true
	}
	for anc := range syntax.Ancestors(node, ctx.hopLimit()) {
		switch anc.Type() {
		case "expression_statement", "variable_declaration", "lexical_declaration",
			"return_statement", "if_statement",
			"function_declaration", "function", "arrow_function",
			"generator_function", "generator_function_declaration", "method_definition":
			if marker, ok := commentMarker(anc, ctx); ok {
				return marker, true
			}
		}
		if syntax.IsFunctionBoundary(anc) && anc.Type() != "program" {
			// The function's own doc comment was just checked; markers
			// further out belong to other code.
			break
		}
	}
	return "", false
}

func commentMarker(node *sitter.Node, ctx *AnalysisContext) (string, bool) {
	comment := syntax.LeadingComments(node, ctx.Source)
	if comment == "" {
		return "", false
	}
	return ctx.Cats.Annotations.MatchComment(comment)
}

// insideTrustedCall reports whether node sits in the argument list of an
// enclosing call whose callee matches the trusted vocabulary. Sitting in
// the callee position does not count.
func insideTrustedCall(node *sitter.Node, ctx *AnalysisContext) (string, bool) {
	if ctx.Cats.TrustedCallees.Len() == 0 {
		return "", false
	}

	for anc := range syntax.Ancestors(node, ctx.hopLimit()) {
		if anc.Type() != "call_expression" && anc.Type() != "new_expression" {
			continue
		}
		args := anc.ChildByFieldName("arguments")
		if args == nil || !byteRangeWithin(node, args) {
			continue
		}
		callee := syntax.AccessPathString(callTarget(anc), ctx.Source)
		if callee != "" && ctx.Cats.TrustedCallees.Match(callee) {
			return callee, true
		}
	}
	return "", false
}

func byteRangeWithin(inner, outer *sitter.Node) bool {
	return inner.StartByte() >= outer.StartByte() && inner.EndByte() <= outer.EndByte()
}
