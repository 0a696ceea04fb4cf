// File: internal/analysis/core/guard.go
package core

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/lancet/internal/syntax"
)

// comparators are the operator spellings that make a .length mention count
// as a bounds comparison.
var comparators = []string{"<", ">", "<=", ">=", "===", "==", "!==", "!=", "&&", "||"}

// IsGuarded walks upward from useSite looking for a structure that bounds,
// types, or role-checks the named sink before it is reached. The walk stops
// at the first function boundary or after the configured hop limit, and an
// exhausted walk means unguarded. Checks against the guarding condition are
// textual: the condition must mention "<sink>.length" (or the sink name for
// ownership and role checks), which trades precision for recall.
func IsGuarded(useSite *sitter.Node, sinkName string, ctx *AnalysisContext) GuardVerdict {
	if useSite == nil || sinkName == "" {
		return GuardVerdict{}
	}

	sink := strings.ToLower(sinkName)
	needle := sink + ".length"

	for anc := range syntax.Ancestors(useSite, ctx.hopLimit()) {
		switch anc.Type() {
		case "if_statement":
			cond := loweredText(anc.ChildByFieldName("condition"), ctx.Source)
			if containsComparison(cond, needle) {
				return GuardVerdict{Guarded: true, Kind: GuardBoundsCheck}
			}
			if strings.Contains(cond, "hasownproperty") && strings.Contains(cond, sink) {
				return GuardVerdict{Guarded: true, Kind: GuardTypeGuard}
			}
			if test := anc.ChildByFieldName("condition"); callsRoleCheck(test, ctx) {
				return GuardVerdict{Guarded: true, Kind: GuardRoleCheck}
			}

		case "ternary_expression":
			if test := anc.ChildByFieldName("condition"); callsRoleCheck(test, ctx) {
				return GuardVerdict{Guarded: true, Kind: GuardRoleCheck}
			}

		case "variable_declaration", "lexical_declaration":
			text := loweredText(anc, ctx.Source)
			if strings.Contains(text, needle) &&
				(strings.Contains(text, "math.min(") || strings.Contains(text, "math.max(")) {
				return GuardVerdict{Guarded: true, Kind: GuardClamp}
			}

		case "return_statement":
			if strings.Contains(loweredText(anc, ctx.Source), needle) {
				return GuardVerdict{Guarded: true, Kind: GuardEarlyReturn}
			}
		}

		if syntax.IsFunctionBoundary(anc) {
			break
		}
	}
	return GuardVerdict{}
}

// KeyGuard evaluates a property-key expression against the dangerous-key
// set. A string literal that names a safe key is guarded outright; an
// identifier is guarded only when the type oracle resolves it to a union of
// string literals none of which is dangerous. Without an oracle the answer
// is unguarded.
func KeyGuard(keyNode *sitter.Node, ctx *AnalysisContext) GuardVerdict {
	if keyNode == nil {
		return GuardVerdict{}
	}

	if value, ok := syntax.StringLiteralValue(keyNode, ctx.Source); ok {
		if ctx.Cats.DangerousKeys.Contains(value) {
			return GuardVerdict{}
		}
		return GuardVerdict{Guarded: true, Kind: GuardTypeGuard}
	}

	if keyNode.Type() != "identifier" || ctx.Oracle == nil {
		return GuardVerdict{}
	}
	union, ok := ctx.Oracle.StringLiteralUnion(keyNode)
	if !ok || len(union) == 0 {
		return GuardVerdict{}
	}
	for _, member := range union {
		if ctx.Cats.DangerousKeys.Contains(member) {
			return GuardVerdict{}
		}
	}
	return GuardVerdict{Guarded: true, Kind: GuardTypeGuard}
}

// containsComparison reports whether cond mentions the needle together with
// at least one comparison or logical operator.
func containsComparison(cond, needle string) bool {
	if !strings.Contains(cond, needle) {
		return false
	}
	for _, op := range comparators {
		if strings.Contains(cond, op) {
			return true
		}
	}
	return false
}

// callsRoleCheck reports whether a condition expression invokes a function
// from the role-check vocabulary (isAdmin(user), ctx.hasRole('root'), ...).
func callsRoleCheck(test *sitter.Node, ctx *AnalysisContext) bool {
	if test == nil || ctx.Cats.RoleChecks.Len() == 0 {
		return false
	}
	found := false
	syntax.Walk(test, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.Type() != "call_expression" {
			return true
		}
		callee := syntax.AccessPathString(n.ChildByFieldName("function"), ctx.Source)
		if callee != "" && ctx.Cats.RoleChecks.Match(callee) {
			found = true
			return false
		}
		return true
	})
	return found
}

func loweredText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return strings.ToLower(syntax.NodeContent(node, source))
}
