// internal/analysis/core/context.go
package core

import (
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// DefaultMaxHops bounds the upward ancestor walks used by guard detection,
// suppression, and declaration resolution.
const DefaultMaxHops = 16

// TypeOracle is the optional type-information collaborator. It answers one
// narrow question: is this expression statically constrained to a finite set
// of string literals? Analysis must work with no oracle at all, degrading to
// "no static type evidence".
type TypeOracle interface {
	StringLiteralUnion(node *sitter.Node) ([]string, bool)
}

// Policy holds the per-detector semantic switches.
type Policy struct {
	// TrustParams treats function parameters as validated at the boundary.
	// Detectors that audit inside function bodies (buffer overread) leave
	// this off so bare parameters stay suspect.
	TrustParams bool

	// ReportWhenGuarded keeps guarded sinks as Low-severity findings instead
	// of dropping them, for defense-in-depth detectors that recommend an
	// extra validation layer.
	ReportWhenGuarded bool

	// CriticalSink marks this detector's sink as critical: High-confidence
	// taint escalates to Critical severity (SQL text, dynamic require,
	// privileged field assignment).
	CriticalSink bool

	// StrictMode disables annotation and trusted-call suppression so every
	// candidate is reported.
	StrictMode bool
}

type taintRecord struct {
	source     string
	role       string
	confidence schemas.Confidence
}

// AnalysisContext carries one detector pass over one file: the source bytes
// the tree indexes into, the compiled catalogues, the policy switches, and
// the names already found tainted. It belongs to a single goroutine and is
// dropped at end of file; the catalogues it references are shared and
// immutable.
type AnalysisContext struct {
	Source  []byte
	Cats    Catalogues
	Policy  Policy
	MaxHops int
	Oracle  TypeOracle
	Logger  *zap.Logger

	// tainted is append-only: a name is never un-tainted once marked, and a
	// weaker verdict never overwrites a stronger one. Same-named variables
	// in sibling scopes share an entry; that imprecision is accepted.
	tainted map[string]taintRecord
}

// NewAnalysisContext builds a context for one detector pass over one file.
func NewAnalysisContext(source []byte, cats Catalogues, policy Policy, logger *zap.Logger) *AnalysisContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisContext{
		Source:  source,
		Cats:    cats,
		Policy:  policy,
		MaxHops: DefaultMaxHops,
		Logger:  logger,
		tainted: make(map[string]taintRecord),
	}
}

// MarkTainted records that name held a tainted value. Marking is monotonic:
// later, weaker evidence never downgrades or clears an entry.
func (c *AnalysisContext) MarkTainted(name string, v TaintVerdict) {
	if name == "" || !v.Tainted {
		return
	}
	if prev, ok := c.tainted[name]; ok && confidenceRank(prev.confidence) >= confidenceRank(v.Confidence) {
		return
	}
	c.tainted[name] = taintRecord{source: v.Source, role: v.Role, confidence: v.Confidence}
}

// TaintedName returns the recorded verdict for a name marked earlier in this
// pass.
func (c *AnalysisContext) TaintedName(name string) (TaintVerdict, bool) {
	rec, ok := c.tainted[name]
	if !ok {
		return TaintVerdict{}, false
	}
	return TaintVerdict{
		Tainted:    true,
		Source:     rec.source,
		Role:       rec.role,
		Confidence: rec.confidence,
	}, true
}

// hopLimit returns the configured ancestor bound, defaulting when the
// context was built by hand with a zero value.
func (c *AnalysisContext) hopLimit() int {
	if c.MaxHops <= 0 {
		return DefaultMaxHops
	}
	return c.MaxHops
}

func confidenceRank(conf schemas.Confidence) int {
	switch conf {
	case schemas.ConfidenceHigh:
		return 3
	case schemas.ConfidenceMedium:
		return 2
	case schemas.ConfidenceLow:
		return 1
	}
	return 0
}
