// File: internal/analysis/detect/vocabulary.go
package detect

import "github.com/xkilldash9x/lancet/internal/analysis/core"

// requestSources are the attacker-reachable inputs every injection-style
// detector starts from. Substring matching is deliberate: "req.query"
// matches "req.query.id" and "userInput" matches "input"-vocabulary
// entries, trading token collisions for recall.
func requestSources() []core.SourcePattern {
	return []core.SourcePattern{
		{Pattern: "req.query", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "req.body", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "req.params", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "req.headers", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "req.cookies", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "request.query", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "request.body", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "request.params", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "ctx.query", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "ctx.params", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "location.search", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "location.hash", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "document.cookie", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "process.argv", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: `/^(self|window|event)\.(name|data|detail)\b/`, Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "userinput", Role: "request-input", Trust: core.TrustHigh},
		{Pattern: "untrusted", Role: "request-input", Trust: core.TrustHigh},
	}
}

// databaseSources cover values read back from a datastore. They are
// medium-trust: dangerous when echoed into a second query or used as an
// index, but one step removed from the attacker.
func databaseSources() []core.SourcePattern {
	return []core.SourcePattern{
		{Pattern: "rows", Role: "database-result", Trust: core.TrustMedium},
		{Pattern: "result.rows", Role: "database-result", Trust: core.TrustMedium},
		{Pattern: "queryresult", Role: "database-result", Trust: core.TrustMedium},
		{Pattern: "dbresult", Role: "database-result", Trust: core.TrustMedium},
	}
}

// baseSanitizers neutralize taint regardless of sink kind. Detectors append
// sink-specific entries on top.
func baseSanitizers() []string {
	return []string{
		"sanitize",
		"validate",
		"validator.escape",
		"validator.isint",
		"validator.isalphanumeric",
		"dompurify.sanitize",
		"encodeuricomponent",
	}
}

// defaultRoleChecks recognize authorization predicates in guard conditions.
func defaultRoleChecks() []string {
	return []string{
		"isadmin",
		"isauthorized",
		"isauthenticated",
		"hasrole",
		"haspermission",
		"checkrole",
		"checkpermission",
		"requirerole",
	}
}

// defaultTrustedCallees name APIs whose argument position is considered
// safe: parameterization, escaping, or explicit review wrappers.
func defaultTrustedCallees() []string {
	return []string{
		"assertsafe",
		"escapehtml",
		"sqlstring.escape",
		"sqlstring.format",
	}
}
