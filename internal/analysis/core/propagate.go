// File: internal/analysis/core/propagate.go
package core

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

const (
	// maxExprDepth bounds recursion through sub-expressions. Past the bound
	// the answer degrades to "not tainted" rather than overflowing on an
	// adversarially nested tree.
	maxExprDepth = 48

	// maxScopeHops bounds the upward walk used to resolve a declaration.
	// Scope resolution may climb through more levels than a guard check, but
	// it still stops at the first function boundary.
	maxScopeHops = 64
)

// clampCallees are always recognized as sanitizing regardless of the
// detector's own validator list.
var clampCallees = map[string]struct{}{
	"math.min":          {},
	"math.max":          {},
	"parseint":          {},
	"parsefloat":        {},
	"number.parseint":   {},
	"number.parsefloat": {},
}

// Propagate determines whether the value of expr is attributable to one of
// the context's taint sources. It follows direct name matches, one-hop
// resolution through the nearest declaration or assignment, sanitizer
// recognition on initializers, and OR-combination over compound expressions.
// The analysis over-approximates: collisions count as matches, and compound
// expressions taint when any operand taints.
func Propagate(expr *sitter.Node, ctx *AnalysisContext) TaintVerdict {
	return propagate(expr, ctx, 0)
}

func propagate(node *sitter.Node, ctx *AnalysisContext, depth int) TaintVerdict {
	if node == nil || node.IsNull() {
		return TaintVerdict{}
	}
	if depth > maxExprDepth {
		return TaintVerdict{}
	}

	switch node.Type() {
	case "string", "number", "true", "false", "null", "undefined", "regex":
		// Literals are never tainted.
		return TaintVerdict{}

	case "template_string":
		best := TaintVerdict{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child != nil && child.Type() == "template_substitution" {
				best = strongest(best, propagate(child.NamedChild(0), ctx, depth+1))
			}
		}
		return best

	case "identifier", "shorthand_property_identifier":
		return resolveIdentifier(node, ctx, depth)

	case "member_expression", "subscript_expression":
		return propagateAccess(node, ctx, depth)

	case "call_expression", "new_expression":
		return propagateCall(node, ctx, depth)

	case "parenthesized_expression", "await_expression", "spread_element",
		"non_null_expression", "as_expression", "satisfies_expression":
		return propagate(node.NamedChild(0), ctx, depth+1)

	case "binary_expression":
		left := propagate(node.ChildByFieldName("left"), ctx, depth+1)
		right := propagate(node.ChildByFieldName("right"), ctx, depth+1)
		return strongest(left, right)

	case "unary_expression", "update_expression":
		return propagate(node.ChildByFieldName("argument"), ctx, depth+1)

	case "ternary_expression":
		cons := propagate(node.ChildByFieldName("consequence"), ctx, depth+1)
		alt := propagate(node.ChildByFieldName("alternative"), ctx, depth+1)
		return strongest(cons, alt)

	case "assignment_expression", "augmented_assignment_expression":
		return propagate(node.ChildByFieldName("right"), ctx, depth+1)

	case "sequence_expression":
		best := TaintVerdict{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			best = strongest(best, propagate(node.NamedChild(i), ctx, depth+1))
		}
		return best

	case "object", "array":
		best := TaintVerdict{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			best = strongest(best, propagate(node.NamedChild(i), ctx, depth+1))
		}
		return best

	case "pair":
		return propagate(node.ChildByFieldName("value"), ctx, depth+1)

	case "arrow_function", "function", "function_declaration", "class", "class_declaration":
		// A function value itself carries no taint; its body is analyzed
		// when its own sinks are visited.
		return TaintVerdict{}
	}

	// Unknown expression kinds keep the over-approximation: any tainted
	// named child taints the whole.
	best := TaintVerdict{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		best = strongest(best, propagate(node.NamedChild(i), ctx, depth+1))
	}
	return best
}

// resolveIdentifier handles the bare-identifier cases: names already marked
// this pass, direct vocabulary hits, one declaration hop, and the parameter
// policy. Unresolvable names that match nothing stay untainted.
func resolveIdentifier(node *sitter.Node, ctx *AnalysisContext, depth int) TaintVerdict {
	name := syntax.NodeContent(node, ctx.Source)
	if name == "" {
		return TaintVerdict{}
	}

	// Names marked earlier stay tainted; a later harmless assignment never
	// clears them.
	if v, ok := ctx.TaintedName(name); ok {
		return v
	}

	// Direct case: the name itself is in the source vocabulary.
	if m, ok := ctx.Cats.Sources.Match(name); ok {
		return verdictFor(m)
	}

	init, kind := resolveDeclaration(node, name, ctx)
	switch kind {
	case declInitialized:
		if isSanitizingExpression(init, ctx) {
			return TaintVerdict{}
		}
		v := propagate(init, ctx, depth+1)
		if v.Tainted {
			ctx.MarkTainted(name, v)
		}
		return v

	case declParameter:
		if ctx.Policy.TrustParams {
			return TaintVerdict{Confidence: schemas.ConfidenceLow}
		}
		v := TaintVerdict{
			Tainted:    true,
			Source:     "parameter " + name,
			Confidence: schemas.ConfidenceLow,
		}
		ctx.MarkTainted(name, v)
		return v
	}

	// Unresolvable (imported, global, or declared without a value): unknown
	// defaults to "not a source".
	return TaintVerdict{Confidence: schemas.ConfidenceLow}
}

// propagateAccess handles member and subscript expressions: a whole-path
// vocabulary match wins, otherwise a tainted object taints every property
// read from it.
func propagateAccess(node *sitter.Node, ctx *AnalysisContext, depth int) TaintVerdict {
	if path := syntax.AccessPathString(node, ctx.Source); path != "" {
		if m, ok := ctx.Cats.Sources.Match(path); ok {
			return verdictFor(m)
		}
	}

	object := node.ChildByFieldName("object")
	if v := propagate(object, ctx, depth+1); v.Tainted {
		return v
	}

	// A computed subscript may still read a vocabulary path: obj[expr] with
	// a tainted index is the sink's concern, not the read's.
	return TaintVerdict{}
}

// propagateCall handles call and constructor expressions. Sanitizer callees
// stop propagation outright; source-pattern callees taint (req.param('id')).
// Otherwise taint is the OR over the callee's receiver and every argument.
func propagateCall(node *sitter.Node, ctx *AnalysisContext, depth int) TaintVerdict {
	callee := callTarget(node)

	if calleePath := syntax.AccessPathString(callee, ctx.Source); calleePath != "" {
		if isClampCallee(calleePath) || ctx.Cats.Sanitizers.Match(calleePath) {
			return TaintVerdict{}
		}
		if m, ok := ctx.Cats.Sources.Match(calleePath); ok {
			return verdictFor(m)
		}
	}

	best := TaintVerdict{}
	if callee != nil && (callee.Type() == "member_expression" || callee.Type() == "subscript_expression") {
		// str.concat(a) taints when str does.
		best = strongest(best, propagate(callee.ChildByFieldName("object"), ctx, depth+1))
	}

	if args := node.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			best = strongest(best, propagate(args.NamedChild(i), ctx, depth+1))
		}
	}
	return best
}

// callTarget returns the callee node for call and new expressions.
func callTarget(node *sitter.Node) *sitter.Node {
	if node.Type() == "new_expression" {
		return node.ChildByFieldName("constructor")
	}
	return node.ChildByFieldName("function")
}

// isSanitizingExpression recognizes initializers that validate rather than
// transport their input: clamp and parse calls, calls into the sanitizer
// vocabulary, and conjunctions that compare against a .length bound. The
// conjunction check is textual, which is the accepted precision tradeoff.
func isSanitizingExpression(expr *sitter.Node, ctx *AnalysisContext) bool {
	if expr == nil {
		return false
	}
	switch expr.Type() {
	case "call_expression":
		calleePath := syntax.AccessPathString(callTarget(expr), ctx.Source)
		if calleePath == "" {
			return false
		}
		return isClampCallee(calleePath) || ctx.Cats.Sanitizers.Match(calleePath)

	case "binary_expression":
		op := syntax.NodeContent(expr.ChildByFieldName("operator"), ctx.Source)
		if op != "&&" {
			return false
		}
		return strings.Contains(syntax.NodeContent(expr, ctx.Source), ".length")

	case "parenthesized_expression", "await_expression":
		return isSanitizingExpression(expr.NamedChild(0), ctx)
	}
	return false
}

func isClampCallee(path string) bool {
	lowered := strings.ToLower(path)
	if _, ok := clampCallees[lowered]; ok {
		return true
	}
	if i := strings.LastIndex(lowered, "."); i >= 0 {
		if _, ok := clampCallees[lowered[i+1:]]; ok {
			return true
		}
	}
	return false
}

// PossiblyNegative reports whether an expression could evaluate below zero:
// a negative numeric literal, a unary minus, or any subtraction anywhere in
// it. Static bounds are not tracked, so every subtraction counts.
func PossiblyNegative(expr *sitter.Node, source []byte) bool {
	if expr == nil {
		return false
	}
	found := false
	syntax.Walk(expr, func(n *sitter.Node) bool {
		if found {
			return false
		}
		switch n.Type() {
		case "unary_expression":
			if syntax.NodeContent(n.ChildByFieldName("operator"), source) == "-" {
				found = true
				return false
			}
		case "binary_expression":
			if syntax.NodeContent(n.ChildByFieldName("operator"), source) == "-" {
				found = true
				return false
			}
		case "number":
			if strings.HasPrefix(syntax.NodeContent(n, source), "-") {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

type declKind int

const (
	declNone declKind = iota
	declInitialized
	declParameter
)

// resolveDeclaration performs one upward walk looking for the nearest
// declarator, assignment, or parameter binding name. The walk stops at the
// first function boundary: captured outer variables resolve as unknown.
func resolveDeclaration(node *sitter.Node, name string, ctx *AnalysisContext) (*sitter.Node, declKind) {
	for anc := range syntax.Ancestors(node, maxScopeHops) {
		switch anc.Type() {
		case "statement_block", "program":
			if init, found := scanScopeNode(anc, name, node, ctx); found {
				if init == nil {
					return nil, declNone
				}
				return init, declInitialized
			}

		case "for_statement":
			if initNode := anc.ChildByFieldName("initializer"); initNode != nil {
				if init, found := declaratorIn(initNode, name, ctx); found {
					if init == nil {
						return nil, declNone
					}
					return init, declInitialized
				}
			}

		case "function_declaration", "function", "arrow_function",
			"generator_function", "generator_function_declaration", "method_definition":
			if paramsBind(anc, name, ctx) {
				return nil, declParameter
			}
			return nil, declNone
		}
	}
	return nil, declNone
}

// scanScopeNode scans one block's statements for a declarator or assignment
// binding name. The lexically closest one before the use site wins; when
// only later bindings exist the first is used, mirroring hoisting.
func scanScopeNode(block *sitter.Node, name string, use *sitter.Node, ctx *AnalysisContext) (*sitter.Node, bool) {
	var (
		beforeInit  *sitter.Node
		beforeFound bool
		firstInit   *sitter.Node
		firstFound  bool
	)

	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt == nil {
			continue
		}

		var (
			init  *sitter.Node
			found bool
		)
		switch stmt.Type() {
		case "variable_declaration", "lexical_declaration":
			init, found = declaratorIn(stmt, name, ctx)
		case "expression_statement":
			expr := stmt.NamedChild(0)
			if expr != nil && expr.Type() == "assignment_expression" {
				left := expr.ChildByFieldName("left")
				if left != nil && left.Type() == "identifier" && syntax.NodeContent(left, ctx.Source) == name {
					init, found = expr.ChildByFieldName("right"), true
				}
			}
		}
		if !found {
			continue
		}

		if stmt.StartByte() < use.StartByte() {
			beforeInit, beforeFound = init, true
		} else if !firstFound {
			firstInit, firstFound = init, true
		}
	}

	if beforeFound {
		return beforeInit, true
	}
	return firstInit, firstFound
}

// declaratorIn finds a variable_declarator for name inside a declaration
// statement, including destructuring patterns that bind it.
func declaratorIn(decl *sitter.Node, name string, ctx *AnalysisContext) (*sitter.Node, bool) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		d := decl.NamedChild(i)
		if d == nil || d.Type() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}

		switch nameNode.Type() {
		case "identifier":
			if syntax.NodeContent(nameNode, ctx.Source) == name {
				return d.ChildByFieldName("value"), true
			}
		case "object_pattern", "array_pattern":
			if patternBinds(nameNode, name, ctx) {
				// const { id } = req.query: the whole initializer stands in
				// for the destructured member.
				return d.ChildByFieldName("value"), true
			}
		}
	}
	return nil, false
}

// patternBinds reports whether a destructuring pattern introduces name.
func patternBinds(pattern *sitter.Node, name string, ctx *AnalysisContext) bool {
	bound := false
	syntax.Walk(pattern, func(n *sitter.Node) bool {
		if bound {
			return false
		}
		switch n.Type() {
		case "identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier":
			if syntax.NodeContent(n, ctx.Source) == name {
				bound = true
				return false
			}
		}
		return true
	})
	return bound
}

// paramsBind reports whether a function node declares name as a parameter.
func paramsBind(fn *sitter.Node, name string, ctx *AnalysisContext) bool {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		// Arrow functions with a single bare parameter.
		params = fn.ChildByFieldName("parameter")
	}
	if params == nil {
		return false
	}

	bound := false
	syntax.Walk(params, func(n *sitter.Node) bool {
		if bound {
			return false
		}
		switch n.Type() {
		case "identifier", "shorthand_property_identifier_pattern":
			if syntax.NodeContent(n, ctx.Source) == name {
				bound = true
				return false
			}
		}
		return true
	})
	return bound
}

func verdictFor(m SourceMatch) TaintVerdict {
	conf := schemas.ConfidenceHigh
	if m.Trust == TrustMedium {
		conf = schemas.ConfidenceMedium
	}
	return TaintVerdict{
		Tainted:    true,
		Source:     m.Pattern,
		Role:       m.Role,
		Confidence: conf,
	}
}

// strongest returns the more severe of two verdicts; ties keep the first.
func strongest(a, b TaintVerdict) TaintVerdict {
	if !a.Tainted {
		return b
	}
	if !b.Tainted {
		return a
	}
	if confidenceRank(b.Confidence) > confidenceRank(a.Confidence) {
		return b
	}
	return a
}
