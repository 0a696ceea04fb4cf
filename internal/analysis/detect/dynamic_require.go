// File: internal/analysis/detect/dynamic_require.go
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

// RuleDynamicRequire flags require() and dynamic import() whose module path
// is attacker-influenced, which loads and executes arbitrary code.
const RuleDynamicRequire = "dynamic-require-path"

type dynamicRequireDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newDynamicRequire(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleDynamicRequire,
		"Module path for require() or import() built from untrusted input.",
		"Resolve the module through a fixed lookup table of allowed names instead of concatenating paths.",
		[]string{"CWE-829", "CWE-95"},
		logger,
	)
	v := vocab{
		// Plugin loaders take the module name as a parameter; keep
		// parameters untrusted.
		sources:        requestSources(),
		sanitizers:     append(baseSanitizers(), "sanitizefilename", "path.basename"),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &dynamicRequireDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *dynamicRequireDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{
		TrustParams:  false,
		CriticalSink: true,
	}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		loader, ok := moduleLoader(n, file.Tree.Source)
		if !ok {
			return true
		}
		arg := firstArgument(n)
		if arg == nil || syntax.IsLiteral(arg) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		decision := core.Evaluate(arg, core.SinkInfo{Name: loader}, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The module path passed to %s() derives from %s; loading it executes attacker-chosen code.",
			loader, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "Dynamic Require Path", desc))
		return true
	})
	return findings, ctx.Err()
}

// moduleLoader recognizes the two loader call shapes: a bare require
// identifier and the import keyword in call position.
func moduleLoader(call *sitter.Node, source []byte) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}
	switch fn.Type() {
	case "identifier":
		if syntax.NodeContent(fn, source) == "require" {
			return "require", true
		}
	case "import":
		return "import", true
	}
	return "", false
}
