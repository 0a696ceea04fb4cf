// File: internal/analysis/detect/sql_injection.go
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

// RuleSQLInjection flags tainted text reaching a query-execution callee.
const RuleSQLInjection = "sql-injection"

// queryCallees are the method names (last path segment, lowercased) treated
// as query sinks. Parameterized overloads pass a literal as the first
// argument and fall out via literal immunity.
var queryCallees = map[string]struct{}{
	"query":            {},
	"execute":          {},
	"exec":             {},
	"raw":              {},
	"queryraw":         {},
	"queryrawunsafe":   {},
	"executeraw":       {},
	"executerawunsafe": {},
	"batch":            {},
}

type sqlInjectionDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newSQLInjection(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleSQLInjection,
		"Attacker-controlled text concatenated or interpolated into a SQL query.",
		"Use parameterized queries or the driver's escaping helpers instead of string building.",
		[]string{"CWE-89"},
		logger,
	)
	v := vocab{
		sources:        append(requestSources(), databaseSources()...),
		sanitizers:     append(baseSanitizers(), "escapeid", "mysql.escape", "pgescape"),
		roleChecks:     defaultRoleChecks(),
		trustedCallees: defaultTrustedCallees(),
	}.apply(o)
	return &sqlInjectionDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *sqlInjectionDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	// Parameters are trusted for this rule: query helpers taking the SQL
	// text as an argument are ubiquitous and flagging each one would bury
	// the direct request-to-query flows.
	actx := d.opts.newContext(file, d.cats, core.Policy{TrustParams: true, CriticalSink: true}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		callee, ok := calleeName(n, file.Tree.Source)
		if !ok {
			return true
		}
		if _, hit := queryCallees[callee]; !hit {
			return true
		}
		arg := firstArgument(n)
		if arg == nil || syntax.IsLiteral(arg) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		sink := core.SinkInfo{Name: calleeObject(n, file.Tree.Source)}
		decision := core.Evaluate(arg, sink, n, actx)
		if decision.Suppressed() {
			file.RecordSuppression()
			return true
		}
		if !decision.Report {
			return true
		}

		desc := fmt.Sprintf(
			"The query text passed to %q is built from %s; an attacker can alter the statement structure.",
			callee, sourceLabel(decision.Taint),
		)
		findings = append(findings, d.emit(file, n, decision, "SQL Injection", desc))
		return true
	})
	return findings, ctx.Err()
}

// calleeName returns the lowercased final segment of the call target:
// "query" for db.query(...) and for bare query(...).
func calleeName(call *sitter.Node, source []byte) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}
	path := syntax.FlattenAccessPath(fn, source)
	if len(path) == 0 {
		return "", false
	}
	return strings.ToLower(path[len(path)-1]), true
}

// calleeObject returns the receiver text of a method call ("db" for
// db.query), or the whole callee for a bare call.
func calleeObject(call *sitter.Node, source []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if fn.Type() == "member_expression" {
		if obj := fn.ChildByFieldName("object"); obj != nil {
			return syntax.NodeContent(obj, source)
		}
	}
	return syntax.NodeContent(fn, source)
}

// firstArgument returns the first named argument of a call, or nil. Tagged
// template invocations (sql`...`) carry no arguments node and are skipped:
// the tag is the parameterization.
func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "arguments" || args.NamedChildCount() == 0 {
		return nil
	}
	return args.NamedChild(0)
}
