// File: internal/analysis/detect/regexp_injection.go
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

// RuleRegexpInjection flags RegExp construction from untrusted pattern
// text. Attacker-shaped patterns turn the matcher into a ReDoS primitive
// and can defeat validation the regex was supposed to do.
const RuleRegexpInjection = "regexp-injection"

type regexpInjectionDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newRegexpInjection(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleRegexpInjection,
		"Regular expression compiled from untrusted input.",
		"Escape user text before embedding it in a pattern, or bound its length and reject regex metacharacters.",
		[]string{"CWE-1333", "CWE-400"},
		logger,
	)
	v := vocab{
		sources:        requestSources(),
		sanitizers:     append(baseSanitizers(), "escaperegexp", "lodash.escaperegexp", "escapestringregexp"),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &regexpInjectionDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *regexpInjectionDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{TrustParams: false}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		pattern := regexpPatternArg(n, file.Tree.Source)
		if pattern == nil || syntax.IsLiteral(pattern) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		sink := core.SinkInfo{Name: patternSinkName(pattern, file.Tree.Source)}
		decision := core.Evaluate(pattern, sink, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The pattern handed to RegExp comes from %s; crafted input can make matching take exponential time.",
			sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "RegExp Injection", desc))
		return true
	})
	return findings, ctx.Err()
}

// regexpPatternArg returns the pattern argument when n constructs a RegExp,
// via new RegExp(...) or the bare RegExp(...) call form.
func regexpPatternArg(n *sitter.Node, source []byte) *sitter.Node {
	var callee *sitter.Node
	switch n.Type() {
	case "new_expression":
		callee = n.ChildByFieldName("constructor")
	case "call_expression":
		callee = n.ChildByFieldName("function")
	default:
		return nil
	}
	if callee == nil || callee.Type() != "identifier" || syntax.NodeContent(callee, source) != "RegExp" {
		return nil
	}
	return firstArgument(n)
}

// patternSinkName prefers the argument's own name so a length guard like
// "if (q.length < 64)" is recognized.
func patternSinkName(pattern *sitter.Node, source []byte) string {
	if pattern.Type() == "identifier" {
		return syntax.NodeContent(pattern, source)
	}
	return "RegExp"
}
