// File: internal/analysis/detect/detector.go

// Package detect holds the built-in detectors. Each detector owns its
// vocabularies and policy, walks one parsed file for its sink shapes, and
// classifies every candidate through the core pipeline.
package detect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File is one parsed source unit handed to the detectors. For scripts lifted
// out of HTML documents, LineOffset maps tree-local lines back to the
// document. A File is owned by a single goroutine for the whole pass.
type File struct {
	Path       string
	Tree       *syntax.Tree
	LineOffset int
	Oracle     core.TypeOracle

	suppressed int
}

// RecordSuppression counts a finding that the safety layer silenced; the
// engine folds the count into the scan stats.
func (f *File) RecordSuppression() { f.suppressed++ }

// SuppressedCount reports how many candidate findings were suppressed.
func (f *File) SuppressedCount() int { return f.suppressed }

// Detector is the contract every built-in rule implements.
type Detector interface {
	Name() string
	Description() string
	Recommendation() string
	CWE() []string
	Analyze(ctx context.Context, file *File) ([]schemas.Finding, error)
}

// BaseDetector carries the common identity fields and a named logger. It is
// embedded by the concrete detectors.
type BaseDetector struct {
	name           string
	description    string
	recommendation string
	cwe            []string
	Logger         *zap.Logger
}

// NewBaseDetector initializes the shared detector fields with a sub-logger
// named after the rule.
func NewBaseDetector(name, description, recommendation string, cwe []string, logger *zap.Logger) *BaseDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseDetector{
		name:           name,
		description:    description,
		recommendation: recommendation,
		cwe:            cwe,
		Logger:         logger.Named(name),
	}
}

// Name returns the rule identifier (kebab-case, stable across releases).
func (b *BaseDetector) Name() string { return b.name }

// Description returns the one-line rule description.
func (b *BaseDetector) Description() string { return b.description }

// Recommendation returns the remediation advice attached to findings.
func (b *BaseDetector) Recommendation() string { return b.recommendation }

// CWE returns the weakness identifiers this rule maps to.
func (b *BaseDetector) CWE() []string { return b.cwe }

// evidence is the structured payload serialized into Finding.Evidence.
type evidence struct {
	Source  string   `json:"source,omitempty"`
	Role    string   `json:"role,omitempty"`
	Guard   string   `json:"guard,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
	Extra   any      `json:"extra,omitempty"`
}

// emit converts a reportable decision into a Finding anchored at node.
func (b *BaseDetector) emit(file *File, node *sitter.Node, d core.SafetyDecision, vulnerability, description string) schemas.Finding {
	loc := syntax.FormatLocation(file.Path, node, file.Tree.Source)

	ev := evidence{
		Source:  d.Taint.Source,
		Role:    d.Taint.Role,
		Reasons: d.Reasons,
	}
	if d.Guard.Guarded {
		ev.Guard = string(d.Guard.Kind)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		b.Logger.Warn("Failed to serialize finding evidence", zap.Error(err))
		payload = []byte("{}")
	}

	return schemas.Finding{
		ID:                uuid.New().String(),
		RuleID:            b.name,
		File:              file.Path,
		Line:              loc.Line + file.LineOffset,
		Column:            loc.Column,
		Snippet:           loc.Snippet,
		Module:            b.name,
		VulnerabilityName: vulnerability,
		Severity:          d.Severity,
		Confidence:        d.Confidence,
		Description:       description,
		Evidence:          payload,
		Recommendation:    b.recommendation,
		CWE:               b.cwe,
		ObservedAt:        time.Now().UTC(),
	}
}

// Overlay appends rule-pack entries to one detector's vocabularies.
type Overlay struct {
	Sources        []core.SourcePattern
	Sanitizers     []string
	RoleChecks     []string
	TrustedCallees []string
	Annotations    []string
	DangerousKeys  []string
}

// vocab is the raw, pre-compile vocabulary a detector declares. Overlays
// append to it before compilation.
type vocab struct {
	sources        []core.SourcePattern
	sanitizers     []string
	roleChecks     []string
	trustedCallees []string
	annotations    []string
	dangerousKeys  []string
}

// defaultAnnotations are recognized by every detector unless a pack replaces
// them.
var defaultAnnotations = []string{"@safe", "@lancet-ignore", "@reviewed"}

func (v vocab) apply(o Overlay) vocab {
	v.sources = append(v.sources, o.Sources...)
	v.sanitizers = append(v.sanitizers, o.Sanitizers...)
	v.roleChecks = append(v.roleChecks, o.RoleChecks...)
	v.trustedCallees = append(v.trustedCallees, o.TrustedCallees...)
	v.annotations = append(v.annotations, o.Annotations...)
	v.dangerousKeys = append(v.dangerousKeys, o.DangerousKeys...)
	return v
}

func (v vocab) compile(timeout time.Duration, logger *zap.Logger) core.Catalogues {
	annotations := v.annotations
	if len(annotations) == 0 {
		annotations = defaultAnnotations
	}
	keys := v.dangerousKeys
	if len(keys) == 0 {
		keys = core.DefaultDangerousKeys
	}
	return core.Catalogues{
		Sources:        core.CompileSources(v.sources, timeout, logger),
		Sanitizers:     core.CompileNames(v.sanitizers, timeout, logger),
		RoleChecks:     core.CompileNames(v.roleChecks, timeout, logger),
		TrustedCallees: core.CompileNames(v.trustedCallees, timeout, logger),
		Annotations:    core.CompileAnnotations(annotations),
		DangerousKeys:  core.CompileKeySet(keys),
	}
}

// settings carries the analysis knobs shared by every detector instance.
type settings struct {
	strictMode bool
	maxHops    int
	timeout    time.Duration
}

func settingsFrom(cfg config.AnalysisConfig) settings {
	return settings{
		strictMode: cfg.StrictMode,
		maxHops:    cfg.MaxAncestorHops,
		timeout:    cfg.PatternTimeout,
	}
}

// newContext builds the per-file analysis context a detector works in.
func (s settings) newContext(file *File, cats core.Catalogues, policy core.Policy, logger *zap.Logger) *core.AnalysisContext {
	policy.StrictMode = s.strictMode
	ctx := core.NewAnalysisContext(file.Tree.Source, cats, policy, logger)
	ctx.MaxHops = s.maxHops
	ctx.Oracle = file.Oracle
	return ctx
}

// Registry instantiates and filters the built-in detectors.
type Registry struct {
	detectors []Detector
}

type factory func(settings, Overlay, *zap.Logger) Detector

// builtins maps rule names to constructors, in stable emission order.
var builtins = []struct {
	name string
	make factory
}{
	{RuleBufferIndex, newBufferIndex},
	{RuleSQLInjection, newSQLInjection},
	{RuleObjectKeyInjection, newObjectKeyInjection},
	{RuleLoopBound, newLoopBound},
	{RuleRoleAssignment, newRoleAssignment},
	{RuleDynamicRequire, newDynamicRequire},
	{RuleHardcodedJWT, newHardcodedJWT},
	{RuleRegexpInjection, newRegexpInjection},
}

// NewRegistry builds the detector set: every built-in, filtered by the
// enabled list from configuration (empty list enables all), with rule-pack
// overlays applied by rule name.
func NewRegistry(cfg config.AnalysisConfig, overlays map[string]Overlay, logger *zap.Logger) (*Registry, error) {
	enabled := map[string]bool{}
	for _, name := range cfg.Detectors {
		enabled[name] = true
	}
	for name := range enabled {
		if !isBuiltin(name) {
			return nil, fmt.Errorf("unknown detector %q", name)
		}
	}
	for name := range overlays {
		if !isBuiltin(name) {
			return nil, fmt.Errorf("rule pack targets unknown detector %q", name)
		}
	}

	s := settingsFrom(cfg)
	reg := &Registry{}
	for _, b := range builtins {
		if len(enabled) > 0 && !enabled[b.name] {
			continue
		}
		reg.detectors = append(reg.detectors, b.make(s, overlays[b.name], logger))
	}
	return reg, nil
}

func isBuiltin(name string) bool {
	for _, b := range builtins {
		if b.name == name {
			return true
		}
	}
	return false
}

// Detectors returns the active detectors in stable order.
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// Names lists every built-in rule name, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for _, b := range builtins {
		names = append(names, b.name)
	}
	sort.Strings(names)
	return names
}
