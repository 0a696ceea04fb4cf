// File: internal/analysis/detect/buffer_index.go
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

// RuleBufferIndex flags subscript reads whose index is attacker-influenced
// and not provably bounded.
const RuleBufferIndex = "buffer-index-overread"

type bufferIndexDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newBufferIndex(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleBufferIndex,
		"Tainted value used as a buffer or array index without a bounds check.",
		"Clamp the index against the container length (Math.min/Math.max) or reject out-of-range values before indexing.",
		[]string{"CWE-125", "CWE-129"},
		logger,
	)
	v := vocab{
		sources:        append(requestSources(), databaseSources()...),
		sanitizers:     append(baseSanitizers(), "validateindex", "toindex"),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &bufferIndexDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *bufferIndexDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	// Parameters count as untrusted here: a helper that indexes with a raw
	// argument is exactly the shape this rule exists for.
	actx := d.opts.newContext(file, d.cats, core.Policy{TrustParams: false}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "subscript_expression" {
			return true
		}
		object := n.ChildByFieldName("object")
		index := n.ChildByFieldName("index")
		if object == nil || index == nil || syntax.IsLiteral(index) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		sink := core.SinkInfo{Name: syntax.NodeContent(object, file.Tree.Source)}
		decision := core.Evaluate(index, sink, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		if core.PossiblyNegative(index, file.Tree.Source) {
			decision.Reasons = append(decision.Reasons, "index may be negative")
		}
		desc := fmt.Sprintf(
			"The index %q reaching %q derives from %s and is never checked against the container length.",
			syntax.NodeContent(index, file.Tree.Source), sink.Name, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "Buffer Index Over-read", desc))
		return true
	})
	return findings, ctx.Err()
}

// sourceLabel renders the taint origin for finding descriptions.
func sourceLabel(taint core.TaintVerdict) string {
	if taint.Source == "" {
		return "untrusted input"
	}
	return fmt.Sprintf("%q", taint.Source)
}
