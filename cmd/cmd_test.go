package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/internal/observability"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()

	rootCmd := NewRootCommand()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestRulesListsDetectors(t *testing.T) {
	out, err := execute(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "sql-injection")
	assert.Contains(t, out, "buffer-index")
	assert.Contains(t, out, "CWE-89")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestScanCleanSource(t *testing.T) {
	dir := writeFixture(t, "clean.js", "function add(a, b) { return a + b; }\n")
	report := filepath.Join(t.TempDir(), "report.json")

	_, err := execute(t, "scan", dir, "--format", "json", "--output", report, "--no-progress")
	require.NoError(t, err)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"findings"`)
}

func TestScanFailsOnThreshold(t *testing.T) {
	dir := writeFixture(t, "vuln.js",
		`db.query("SELECT * FROM users WHERE id = " + req.query.id);`+"\n")
	report := filepath.Join(t.TempDir(), "report.json")

	_, err := execute(t, "scan", dir, "--format", "json", "--output", report, "--no-progress", "--fail-on", "high")
	assert.ErrorIs(t, err, ErrFindingsAboveThreshold)
}

func TestScanThresholdSparesLowerSeverities(t *testing.T) {
	// A database-result source is medium trust, so the finding stays below
	// the default "high" failure threshold.
	dir := writeFixture(t, "echo.js",
		`db.query("SELECT * FROM audit WHERE actor = " + rows[0].name);`+"\n")
	report := filepath.Join(t.TempDir(), "report.json")

	out, err := execute(t, "scan", dir, "--format", "json", "--output", report, "--no-progress", "--fail-on", "high")
	require.NoError(t, err, out)

	_, err = execute(t, "scan", dir, "--format", "json", "--output", report, "--no-progress", "--fail-on", "medium")
	assert.ErrorIs(t, err, ErrFindingsAboveThreshold)
}

func TestScanRejectsBadFlags(t *testing.T) {
	dir := writeFixture(t, "clean.js", "let x = 1;\n")

	_, err := execute(t, "scan", dir, "--fail-on", "apocalyptic", "--no-progress")
	assert.Error(t, err)

	_, err = execute(t, "scan", dir, "--format", "pdf", "--no-progress")
	assert.Error(t, err)
}

func TestScanRequiresTargets(t *testing.T) {
	_, err := execute(t, "scan")
	assert.Error(t, err)
}

func TestScanMissingTarget(t *testing.T) {
	_, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"), "--no-progress")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFindingsAboveThreshold)
}
