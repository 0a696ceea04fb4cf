// File: internal/analysis/core/catalogue_test.go
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSourceCatalogueSubstring(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: "req.query", Role: "request-input"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	m, ok := cat.Match("req.query.id")
	require.True(t, ok)
	assert.Equal(t, "req.query", m.Pattern)
	assert.Equal(t, "request-input", m.Role)
	assert.Equal(t, TrustHigh, m.Trust)

	_, ok = cat.Match("res.body")
	assert.False(t, ok)
}

func TestSourceCatalogueCaseInsensitive(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: "Req.Query"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	_, ok := cat.Match("REQ.QUERY.ID")
	assert.True(t, ok)
}

func TestSourceCatalogueExact(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: "=req"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	_, ok := cat.Match("req")
	assert.True(t, ok, "exact pattern matches the bare name")
	_, ok = cat.Match("req.query")
	assert.True(t, ok, "exact pattern matches a dotted extension")
	_, ok = cat.Match("request")
	assert.False(t, ok, "exact pattern must not match inside a longer token")
}

func TestSourceCatalogueRegex(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: `/^document\.(location|referrer)/`, Role: "dom"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	m, ok := cat.Match("document.location.hash")
	require.True(t, ok)
	assert.Equal(t, "dom", m.Role)

	_, ok = cat.Match("mydocument.location")
	assert.False(t, ok)
}

func TestInvalidRegexRejectedAtCompile(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: `/[unclosed/`},
		{Pattern: "req.query"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	// The bad pattern is dropped once and never matches; the good one
	// survives.
	assert.Equal(t, 1, cat.Len())
	_, ok := cat.Match("[unclosed")
	assert.False(t, ok)
	_, ok = cat.Match("req.query.id")
	assert.True(t, ok)
}

func TestSourceCatalogueFirstWins(t *testing.T) {
	cat := CompileSources([]SourcePattern{
		{Pattern: "req", Role: "first"},
		{Pattern: "req.query", Role: "second"},
	}, DefaultPatternTimeout, zaptest.NewLogger(t))

	m, ok := cat.Match("req.query.id")
	require.True(t, ok)
	assert.Equal(t, "first", m.Role)
}

func TestNameCatalogueLastElementFallback(t *testing.T) {
	cat := CompileNames([]string{"=sanitize"}, DefaultPatternTimeout, zaptest.NewLogger(t))

	assert.True(t, cat.Match("sanitize"))
	assert.True(t, cat.Match("utils.sanitize"), "the final path element is matched on its own")
	assert.False(t, cat.Match("sanitizeish"))
}

func TestAnnotationCatalogue(t *testing.T) {
	cat := CompileAnnotations([]string{"@safe", "@lancet-ignore"})

	marker, ok := cat.MatchComment("/** @safe reviewed 2024-06 */")
	require.True(t, ok)
	assert.Equal(t, "@safe", marker)

	marker, ok = cat.MatchComment("// @LANCET-IGNORE")
	require.True(t, ok)
	assert.Equal(t, "@lancet-ignore", marker)

	_, ok = cat.MatchComment("// nothing to see")
	assert.False(t, ok)
}

func TestKeySet(t *testing.T) {
	set := CompileKeySet(DefaultDangerousKeys)

	assert.True(t, set.Contains("__proto__"))
	assert.True(t, set.Contains("PROTOTYPE"))
	assert.True(t, set.Contains("constructor"))
	assert.False(t, set.Contains("name"))
}

func TestNilCataloguesAreInert(t *testing.T) {
	var sources *SourceCatalogue
	var names *NameCatalogue
	var annotations *AnnotationCatalogue
	var keys *KeySet

	_, ok := sources.Match("req.query")
	assert.False(t, ok)
	assert.Zero(t, sources.Len())
	assert.False(t, names.Match("sanitize"))
	assert.Zero(t, names.Len())
	_, ok = annotations.MatchComment("// @safe")
	assert.False(t, ok)
	assert.Zero(t, annotations.Len())
	assert.False(t, keys.Contains("__proto__"))
}
