// File: internal/analysis/detect/object_key.go
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

// RuleObjectKeyInjection flags computed property writes whose key is
// attacker-influenced, the prototype-pollution entry point.
const RuleObjectKeyInjection = "object-key-injection"

type objectKeyDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newObjectKeyInjection(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleObjectKeyInjection,
		"Tainted value used as a computed property key on assignment.",
		"Restrict keys to a known set (literal union type or allowlist) and reject __proto__, prototype, and constructor.",
		[]string{"CWE-915", "CWE-1321"},
		logger,
	)
	v := vocab{
		// Recursive merge helpers take the hostile object as a parameter,
		// so parameters stay untrusted for this rule.
		sources:        requestSources(),
		sanitizers:     baseSanitizers(),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &objectKeyDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *objectKeyDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{TrustParams: false}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "assignment_expression" && n.Type() != "augmented_assignment_expression" {
			return true
		}
		left := n.ChildByFieldName("left")
		if left == nil || left.Type() != "subscript_expression" {
			return true
		}
		key := left.ChildByFieldName("index")
		object := left.ChildByFieldName("object")
		if key == nil || object == nil || syntax.IsLiteral(key) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		sink := core.SinkInfo{
			Name:    syntax.NodeContent(object, file.Tree.Source),
			KeySink: true,
		}
		decision := core.Evaluate(key, sink, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The property key %q written on %q comes from %s; keys like __proto__ let an attacker poison the object graph.",
			syntax.NodeContent(key, file.Tree.Source), sink.Name, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "Object Key Injection", desc))
		return true
	})
	return findings, ctx.Err()
}
