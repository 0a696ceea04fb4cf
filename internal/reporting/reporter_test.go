package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// closableBuffer lets reporters exercise their Close path against memory.
type closableBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closableBuffer) Close() error {
	b.closed = true
	return nil
}

func sampleEnvelope() *schemas.ResultEnvelope {
	return &schemas.ResultEnvelope{
		ScanID:    "scan-1",
		Tool:      "lancet",
		Version:   "1.0.0",
		Timestamp: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Targets:   []string{"src"},
		Findings: []schemas.Finding{
			{
				ID:                "f-1",
				ScanID:            "scan-1",
				RuleID:            "sql-injection",
				File:              "src/db.js",
				Line:              12,
				Column:            5,
				Snippet:           "db.query(`SELECT * FROM users WHERE id = ${id}`)",
				VulnerabilityName: "SQL Injection",
				Severity:          schemas.SeverityHigh,
				Confidence:        schemas.ConfidenceHigh,
				Description:       "tainted value reaches a query sink",
				Recommendation:    "use parameterized queries",
				CWE:               []string{"CWE-89"},
			},
			{
				ID:                "f-2",
				ScanID:            "scan-1",
				RuleID:            "loop-bound",
				File:              "src/loop.js",
				Line:              3,
				Column:            1,
				VulnerabilityName: "Unvalidated Loop Bound",
				Severity:          schemas.SeverityMedium,
				Confidence:        schemas.ConfidenceMedium,
				Description:       "loop bound derives from request input",
				Recommendation:    "clamp the bound",
				CWE:               []string{"CWE-606"},
			},
		},
		Stats: schemas.ScanStats{
			FilesDiscovered: 3,
			FilesAnalyzed:   2,
			FilesSkipped:    1,
			Duration:        250 * time.Millisecond,
		},
	}
}

func TestNewUnsupportedFormat(t *testing.T) {
	r, err := New("pdf", "stdout", "1.0.0")
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestNewWritesToFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.json")
	r, err := New("json", outputPath, "1.0.0")
	require.NoError(t, err)

	require.NoError(t, r.Write(sampleEnvelope()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sql-injection")
}

func TestJSONReporterRoundTrip(t *testing.T) {
	buf := &closableBuffer{}
	r := NewJSONReporter(buf)

	env := sampleEnvelope()
	require.NoError(t, r.Write(env))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)

	var decoded schemas.ResultEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	if diff := cmp.Diff(env.Findings, decoded.Findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, env.ScanID, decoded.ScanID)
}

func TestConsoleReporterOutput(t *testing.T) {
	buf := &closableBuffer{}
	r := NewConsoleReporter(buf)

	require.NoError(t, r.Write(sampleEnvelope()))
	require.NoError(t, r.Close())

	out := buf.String()
	assert.Contains(t, out, "src/db.js:12:5")
	assert.Contains(t, out, "SQL Injection")
	assert.Contains(t, out, "rule=loop-bound")
	assert.Contains(t, out, "2 findings")
}

func TestConsoleReporterNoFindings(t *testing.T) {
	buf := &closableBuffer{}
	r := NewConsoleReporter(buf)

	env := sampleEnvelope()
	env.Findings = nil
	require.NoError(t, r.Write(env))

	assert.Contains(t, buf.String(), "no findings")
}

func TestCheckstyleReporterOutput(t *testing.T) {
	buf := &closableBuffer{}
	r := NewCheckstyleReporter(buf)

	require.NoError(t, r.Write(sampleEnvelope()))
	require.NoError(t, r.Close())

	out := buf.String()
	assert.Contains(t, out, `<checkstyle version="4.3">`)
	assert.Contains(t, out, `name="src/db.js"`)
	assert.Contains(t, out, `line="12"`)
	assert.Contains(t, out, `severity="error"`)
	assert.Contains(t, out, `source="loop-bound"`)
	assert.True(t, buf.closed)
}
