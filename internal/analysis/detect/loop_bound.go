// File: internal/analysis/detect/loop_bound.go
package detect

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

// RuleLoopBound flags loops whose iteration count is attacker-controlled.
// It is a defense-in-depth rule: a guard lowers the severity instead of
// silencing the finding, because a huge-but-bounded loop still burns CPU.
const RuleLoopBound = "unchecked-loop-bound"

type loopBoundDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newLoopBound(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleLoopBound,
		"Loop bound taken from untrusted input without an upper limit.",
		"Cap the iteration count with Math.min against a server-side constant before looping.",
		[]string{"CWE-606", "CWE-400"},
		logger,
	)
	v := vocab{
		sources:        append(requestSources(), databaseSources()...),
		sanitizers:     baseSanitizers(),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &loopBoundDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *loopBoundDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{
		TrustParams:       true,
		ReportWhenGuarded: true,
	}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "for_statement", "while_statement", "do_statement":
		default:
			return true
		}
		cond := loopCondition(n)
		if cond == nil {
			return true
		}
		bound := loopBoundExpr(cond, file.Tree.Source)
		if bound == nil || syntax.IsLiteral(bound) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		sink := core.SinkInfo{Name: syntax.NodeContent(bound, file.Tree.Source)}
		decision := core.Evaluate(bound, sink, cond, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The loop bound %q comes from %s; a large value stalls this worker.",
			sink.Name, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "Unchecked Loop Bound", desc))
		return true
	})
	return findings, ctx.Err()
}

// loopCondition unwraps the grammar-specific wrappers around a loop's test
// expression: for-statements wrap it in an expression_statement, while and
// do-while in a parenthesized_expression.
func loopCondition(loop *sitter.Node) *sitter.Node {
	cond := loop.ChildByFieldName("condition")
	if cond == nil {
		return nil
	}
	switch cond.Type() {
	case "expression_statement", "parenthesized_expression":
		return cond.NamedChild(0)
	case "empty_statement":
		return nil
	}
	return cond
}

// loopBoundExpr isolates the bound side of a comparison: the right operand
// of < and <=, the left of > and >=. Conditions with another shape are
// evaluated whole.
func loopBoundExpr(cond *sitter.Node, source []byte) *sitter.Node {
	if cond == nil {
		return nil
	}
	if cond.Type() != "binary_expression" {
		return cond
	}
	op := cond.ChildByFieldName("operator")
	if op == nil {
		return cond
	}
	switch syntax.NodeContent(op, source) {
	case "<", "<=":
		return cond.ChildByFieldName("right")
	case ">", ">=":
		return cond.ChildByFieldName("left")
	}
	return cond
}
