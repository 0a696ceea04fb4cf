// Package core implements the shared taint-propagation and safety
// classification machinery behind every detector: catalogue matching,
// expression taint propagation, guard recognition, confidence scoring, and
// false-positive suppression. Detectors find sink candidates with their own
// node patterns, then call Evaluate to decide whether a candidate becomes a
// finding.
//
// The analysis is deliberately heuristic: it biases toward recall, accepts
// name collisions as matches, and relies on the guard and suppression layers
// to trim false positives. Several checks compare rendered node text instead
// of structure; that tradeoff is part of the contract, not an accident.
package core

import (
	"github.com/xkilldash9x/lancet/api/schemas"
)

// TaintVerdict is the propagator's result for one expression.
type TaintVerdict struct {
	Tainted bool
	// Source names what the value was traced to: a catalogue pattern, or a
	// description like "parameter userId" for policy-driven taint.
	Source string
	// Role carries the matched source's role tag ("request-input",
	// "database-result"), empty for non-catalogue taint.
	Role       string
	Confidence schemas.Confidence
}

// GuardKind classifies the validation shape that covers a use-site.
type GuardKind string

const (
	GuardBoundsCheck GuardKind = "bounds-check"
	GuardTypeGuard   GuardKind = "type-guard"
	GuardRoleCheck   GuardKind = "role-check"
	GuardClamp       GuardKind = "clamp"
	GuardEarlyReturn GuardKind = "early-return"
)

// GuardVerdict is the guard detector's result for one use-site.
type GuardVerdict struct {
	Guarded bool
	Kind    GuardKind
}

// SafetyDecision is the terminal verdict for one sink candidate. Report is
// false both when there was nothing to report (untainted, or guarded under a
// short-circuiting policy) and when a suppressor fired; SuppressedBy
// distinguishes the two.
type SafetyDecision struct {
	Report     bool
	Severity   schemas.Severity
	Confidence schemas.Confidence
	// Reasons are short human-readable fragments explaining the decision,
	// consumed by detectors when building finding descriptions.
	Reasons []string
	// SuppressedBy names the suppressor check that silenced the candidate,
	// e.g. `annotation "@safe"` or `trusted callee "knex"`. Empty when no
	// suppressor fired.
	SuppressedBy string
	Taint        TaintVerdict
	Guard        GuardVerdict
}

// Suppressed reports whether an otherwise reportable candidate was silenced
// by an annotation or trusted-call match.
func (d SafetyDecision) Suppressed() bool {
	return d.SuppressedBy != ""
}
