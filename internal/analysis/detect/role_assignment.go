// File: internal/analysis/detect/role_assignment.go
package detect

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

// RuleRoleAssignment flags writes of attacker-influenced values into role,
// permission, or privilege fields outside an authorization check.
const RuleRoleAssignment = "privileged-role-assignment"

// roleFields are the property names (lowercased) treated as privilege
// carriers, on assignments and in object literals handed to create/update
// helpers.
var roleFields = map[string]struct{}{
	"role":         {},
	"roles":        {},
	"isadmin":      {},
	"is_admin":     {},
	"admin":        {},
	"permission":   {},
	"permissions":  {},
	"privilege":    {},
	"privileges":   {},
	"scope":        {},
	"scopes":       {},
	"group":        {},
	"groups":       {},
	"accesslevel":  {},
	"access_level": {},
	"issuperuser":  {},
	"is_superuser": {},
}

type roleAssignmentDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newRoleAssignment(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleRoleAssignment,
		"Untrusted input written into a role or permission field.",
		"Assign privileges from a server-side allowlist inside an authorization check, never from request data.",
		[]string{"CWE-269", "CWE-915"},
		logger,
	)
	v := vocab{
		sources:        requestSources(),
		sanitizers:     baseSanitizers(),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &roleAssignmentDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *roleAssignmentDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{
		TrustParams:  true,
		CriticalSink: true,
	}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		field, value := roleWrite(n, file.Tree.Source)
		if value == nil || syntax.IsLiteral(value) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		decision := core.Evaluate(value, core.SinkInfo{Name: field}, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The privilege field %q is set from %s; a request can grant itself elevated access.",
			field, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "Privileged Role Assignment", desc))
		return true
	})
	return findings, ctx.Err()
}

// roleWrite matches the two write shapes: user.role = v (member or literal
// subscript assignment) and { role: v } object-literal pairs.
func roleWrite(n *sitter.Node, source []byte) (string, *sitter.Node) {
	switch n.Type() {
	case "assignment_expression":
		left := n.ChildByFieldName("left")
		name, ok := writtenField(left, source)
		if !ok {
			return "", nil
		}
		return name, n.ChildByFieldName("right")

	case "pair":
		key := n.ChildByFieldName("key")
		if key == nil {
			return "", nil
		}
		name := syntax.NodeContent(key, source)
		if value, isStr := syntax.StringLiteralValue(key, source); isStr {
			name = value
		}
		if !isRoleField(name) {
			return "", nil
		}
		return strings.ToLower(name), n.ChildByFieldName("value")
	}
	return "", nil
}

func writtenField(left *sitter.Node, source []byte) (string, bool) {
	if left == nil {
		return "", false
	}
	switch left.Type() {
	case "member_expression":
		prop := left.ChildByFieldName("property")
		if prop == nil {
			return "", false
		}
		name := syntax.NodeContent(prop, source)
		if isRoleField(name) {
			return strings.ToLower(name), true
		}
	case "subscript_expression":
		index := left.ChildByFieldName("index")
		if value, ok := syntax.StringLiteralValue(index, source); ok && isRoleField(value) {
			return strings.ToLower(value), true
		}
	}
	return "", false
}

func isRoleField(name string) bool {
	_, ok := roleFields[strings.ToLower(name)]
	return ok
}
