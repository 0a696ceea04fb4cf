// File: internal/analysis/core/decide.go
package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// SinkInfo describes the sink a detector is evaluating an expression
// against. KeySink selects property-key guard semantics (literal keys and
// literal-union types) instead of the ancestor bounds walk.
type SinkInfo struct {
	// Name is the sink container's name, matched against guard
	// conditions: "buf" for buf[idx], whose bounds guard mentions
	// buf.length.
	Name string
	// KeySink marks sinks where the tainted value selects an object
	// property rather than an index or query.
	KeySink bool
}

// Evaluate runs the full classification pipeline for one candidate flow:
// taint propagation, guard detection, severity scoring, and suppression.
// expr is the value reaching the sink, at is the sink expression itself.
// The decision records every stage so emitters can explain the verdict.
func Evaluate(expr *sitter.Node, sink SinkInfo, at *sitter.Node, ctx *AnalysisContext) SafetyDecision {
	taint := Propagate(expr, ctx)
	if !taint.Tainted {
		return SafetyDecision{
			Severity:   Score(taint, GuardVerdict{}, ctx.Policy.CriticalSink),
			Confidence: taint.Confidence,
			Taint:      taint,
		}
	}

	var guard GuardVerdict
	if sink.KeySink {
		guard = KeyGuard(expr, ctx)
	}
	if !guard.Guarded {
		guard = IsGuarded(at, sink.Name, ctx)
	}

	decision := SafetyDecision{
		Severity:   Score(taint, guard, ctx.Policy.CriticalSink),
		Confidence: taint.Confidence,
		Taint:      taint,
		Guard:      guard,
	}

	if guard.Guarded && !ctx.Policy.ReportWhenGuarded {
		decision.Reasons = append(decision.Reasons, "guarded by "+string(guard.Kind))
		return decision
	}

	if suppressed, by := ShouldSuppress(at, ctx); suppressed {
		decision.SuppressedBy = by
		return decision
	}

	decision.Report = true
	decision.Reasons = describeFlow(taint, guard)
	return decision
}

func describeFlow(taint TaintVerdict, guard GuardVerdict) []string {
	reasons := make([]string, 0, 2)
	if taint.Source != "" {
		reasons = append(reasons, "tainted via "+taint.Source)
	} else {
		reasons = append(reasons, "tainted value")
	}
	if guard.Guarded {
		reasons = append(reasons, "guarded by "+string(guard.Kind))
	} else {
		reasons = append(reasons, "no guard on path")
	}
	return reasons
}
