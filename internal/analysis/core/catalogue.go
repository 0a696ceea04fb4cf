// File: internal/analysis/core/catalogue.go
package core

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// Catalogue patterns are plain strings with two prefixes recognized at
// compile time:
//
//	/…/    the body compiles as a case-insensitive regex
//	=name  exact match against the whole dotted path (or a dotted prefix)
//
// Everything else is a case-insensitive substring match over the dotted path,
// which also covers whole-path prefixes: a "req.query" entry matches the path
// "req.query.id". Collisions like "userInputField" hitting an "input" entry
// are accepted; the suppression layer, not the matcher, trims that noise.

// DefaultPatternTimeout bounds a single regex evaluation when the caller does
// not supply its own limit.
const DefaultPatternTimeout = 100 * time.Millisecond

type matchKind uint8

const (
	matchSubstring matchKind = iota
	matchExact
	matchRegex
)

// matcher is one compiled catalogue entry. Matching is case-insensitive for
// every kind; text is stored lowercased.
type matcher struct {
	kind matchKind
	text string
	re   *regexp2.Regexp
	raw  string
}

func compileMatcher(raw string, timeout time.Duration) (matcher, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return matcher{}, false
	}

	if len(trimmed) > 2 && strings.HasPrefix(trimmed, "/") && strings.HasSuffix(trimmed, "/") {
		re, err := regexp2.Compile(trimmed[1:len(trimmed)-1], regexp2.IgnoreCase)
		if err != nil {
			return matcher{}, false
		}
		if timeout <= 0 {
			timeout = DefaultPatternTimeout
		}
		re.MatchTimeout = timeout
		return matcher{kind: matchRegex, re: re, raw: raw}, true
	}

	if rest, ok := strings.CutPrefix(trimmed, "="); ok {
		if rest == "" {
			return matcher{}, false
		}
		return matcher{kind: matchExact, text: strings.ToLower(rest), raw: raw}, true
	}

	return matcher{kind: matchSubstring, text: strings.ToLower(trimmed), raw: raw}, true
}

// matches tests a lowercased dotted path. Regex evaluation errors, including
// match timeouts, count as non-matches.
func (m matcher) matches(path string) bool {
	switch m.kind {
	case matchExact:
		return path == m.text || strings.HasPrefix(path, m.text+".")
	case matchSubstring:
		return strings.Contains(path, m.text)
	case matchRegex:
		ok, err := m.re.MatchString(path)
		return err == nil && ok
	}
	return false
}

// Trust grades how directly a source hands attacker-controlled data to the
// program. High-trust sources (request accessors) yield High confidence on a
// match; medium-trust sources (database rows, storage reads) yield Medium.
type Trust string

const (
	TrustHigh   Trust = "high"
	TrustMedium Trust = "medium"
)

// SourcePattern is one raw entry of a detector's source vocabulary.
type SourcePattern struct {
	Pattern string
	Role    string
	Trust   Trust
}

// SourceMatch describes which catalogue entry matched an expression path.
type SourceMatch struct {
	Pattern string
	Role    string
	Trust   Trust
}

type sourceRule struct {
	matcher
	role  string
	trust Trust
}

// SourceCatalogue is a compiled, immutable source vocabulary. A nil catalogue
// matches nothing. Compiled catalogues are safe to share across goroutines.
type SourceCatalogue struct {
	rules []sourceRule
}

// CompileSources compiles a source vocabulary. Invalid patterns are dropped
// with a single warning each; a malformed entry never aborts analysis.
func CompileSources(patterns []SourcePattern, timeout time.Duration, logger *zap.Logger) *SourceCatalogue {
	cat := &SourceCatalogue{rules: make([]sourceRule, 0, len(patterns))}
	for _, p := range patterns {
		m, ok := compileMatcher(p.Pattern, timeout)
		if !ok {
			warnInvalidPattern(logger, p.Pattern)
			continue
		}
		trust := p.Trust
		if trust == "" {
			trust = TrustHigh
		}
		cat.rules = append(cat.rules, sourceRule{matcher: m, role: p.Role, trust: trust})
	}
	return cat
}

// Match tests a dotted expression path against the vocabulary. The first
// matching entry wins; entries keep their configured order.
func (c *SourceCatalogue) Match(path string) (SourceMatch, bool) {
	if c == nil || path == "" {
		return SourceMatch{}, false
	}
	lowered := strings.ToLower(path)
	for _, r := range c.rules {
		if r.matches(lowered) {
			return SourceMatch{Pattern: r.raw, Role: r.role, Trust: r.trust}, true
		}
	}
	return SourceMatch{}, false
}

// Len reports the number of compiled entries.
func (c *SourceCatalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// NameCatalogue is a compiled list of function/callee name patterns, used for
// sanitizer vocabularies, role-check vocabularies, and trusted-call
// allowlists. A nil catalogue matches nothing.
type NameCatalogue struct {
	rules []matcher
}

// CompileNames compiles a name list, dropping invalid patterns with a warning.
func CompileNames(patterns []string, timeout time.Duration, logger *zap.Logger) *NameCatalogue {
	cat := &NameCatalogue{rules: make([]matcher, 0, len(patterns))}
	for _, p := range patterns {
		m, ok := compileMatcher(p, timeout)
		if !ok {
			warnInvalidPattern(logger, p)
			continue
		}
		cat.rules = append(cat.rules, m)
	}
	return cat
}

// Match tests a callee path. When the full path misses, the final path
// element is tried alone so "=sanitize" still hits "utils.sanitize".
func (c *NameCatalogue) Match(path string) bool {
	if c == nil || path == "" {
		return false
	}
	lowered := strings.ToLower(path)
	for _, r := range c.rules {
		if r.matches(lowered) {
			return true
		}
	}
	if i := strings.LastIndex(lowered, "."); i >= 0 && i+1 < len(lowered) {
		last := lowered[i+1:]
		for _, r := range c.rules {
			if r.matches(last) {
				return true
			}
		}
	}
	return false
}

// Len reports the number of compiled entries.
func (c *NameCatalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// AnnotationCatalogue holds the safety markers recognized inside doc
// comments. Markers match as case-insensitive substrings of the comment text.
type AnnotationCatalogue struct {
	markers []string // lowercased
	raw     []string
}

// CompileAnnotations compiles the marker list. Blank markers are dropped.
func CompileAnnotations(markers []string) *AnnotationCatalogue {
	cat := &AnnotationCatalogue{}
	for _, m := range markers {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		cat.markers = append(cat.markers, strings.ToLower(trimmed))
		cat.raw = append(cat.raw, trimmed)
	}
	return cat
}

// MatchComment returns the first marker present in the comment text.
func (c *AnnotationCatalogue) MatchComment(comment string) (string, bool) {
	if c == nil || comment == "" {
		return "", false
	}
	lowered := strings.ToLower(comment)
	for i, m := range c.markers {
		if strings.Contains(lowered, m) {
			return c.raw[i], true
		}
	}
	return "", false
}

// Len reports the number of markers.
func (c *AnnotationCatalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.markers)
}

// KeySet is a small case-insensitive name set, used for the dangerous
// property keys that defeat literal-key guards.
type KeySet struct {
	names map[string]struct{}
}

// DefaultDangerousKeys are the property names that enable prototype
// pollution even when written as literals.
var DefaultDangerousKeys = []string{"__proto__", "prototype", "constructor"}

// CompileKeySet builds a KeySet from raw names.
func CompileKeySet(names []string) *KeySet {
	set := &KeySet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		trimmed := strings.ToLower(strings.TrimSpace(n))
		if trimmed != "" {
			set.names[trimmed] = struct{}{}
		}
	}
	return set
}

// Contains tests membership, case-insensitively. A nil set contains nothing.
func (s *KeySet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[strings.ToLower(name)]
	return ok
}

// Catalogues bundles the compiled vocabularies one detector hands to the
// core. Any field may be nil; a nil catalogue simply never matches.
type Catalogues struct {
	// Sources name the untrusted origins this detector traces from.
	Sources *SourceCatalogue
	// Sanitizers are callees whose result is considered validated.
	Sanitizers *NameCatalogue
	// RoleChecks is the authorization vocabulary for the role-check guard.
	RoleChecks *NameCatalogue
	// TrustedCallees is the suppression allowlist of ORM/escaping APIs.
	TrustedCallees *NameCatalogue
	// Annotations are the doc-comment safety markers.
	Annotations *AnnotationCatalogue
	// DangerousKeys defeat literal-key guards (prototype pollution names).
	DangerousKeys *KeySet
}

func warnInvalidPattern(logger *zap.Logger, pattern string) {
	if logger == nil {
		return
	}
	logger.Warn("Ignoring invalid catalogue pattern", zap.String("pattern", pattern))
}
