// File: internal/analysis/core/score.go
package core

import "github.com/xkilldash9x/lancet/api/schemas"

// Score maps a taint verdict and a guard verdict onto a report severity.
// Guards pull everything down to Low; an unguarded high-confidence flow
// into a critical sink is Critical; ties resolve toward the higher rank.
func Score(taint TaintVerdict, guard GuardVerdict, critical bool) schemas.Severity {
	if !taint.Tainted {
		return schemas.SeverityInfo
	}
	if guard.Guarded {
		return schemas.SeverityLow
	}
	if taint.Confidence == schemas.ConfidenceHigh {
		if critical {
			return schemas.SeverityCritical
		}
		return schemas.SeverityHigh
	}
	return schemas.SeverityMedium
}
