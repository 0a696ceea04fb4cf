package reporting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/reporting/sarif"
)

func writeSARIF(t *testing.T, env *schemas.ResultEnvelope) *sarif.Log {
	t.Helper()
	buf := &closableBuffer{}
	r := NewSARIFReporter(buf, "1.0.0-test")
	require.NoError(t, r.Write(env))
	require.NoError(t, r.Close())
	require.True(t, buf.closed)

	var log sarif.Log
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	return &log
}

func TestSARIFReporterStructure(t *testing.T) {
	log := writeSARIF(t, sampleEnvelope())

	assert.Equal(t, SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)

	driver := log.Runs[0].Tool.Driver
	assert.Equal(t, ToolName, driver.Name)
	require.NotNil(t, driver.Version)
	assert.Equal(t, "1.0.0-test", *driver.Version)

	results := log.Runs[0].Results
	require.Len(t, results, 2)
	assert.Equal(t, "sql-injection", results[0].RuleID)
	assert.Equal(t, sarif.LevelError, results[0].Level)
	assert.Equal(t, sarif.LevelWarning, results[1].Level)
}

func TestSARIFReporterLocations(t *testing.T) {
	log := writeSARIF(t, sampleEnvelope())

	locs := log.Runs[0].Results[0].Locations
	require.Len(t, locs, 1)
	phys := locs[0].PhysicalLocation
	require.NotNil(t, phys)
	require.NotNil(t, phys.ArtifactLocation)
	assert.Equal(t, "src/db.js", *phys.ArtifactLocation.URI)

	require.NotNil(t, phys.Region)
	require.NotNil(t, phys.Region.StartLine)
	assert.Equal(t, 12, *phys.Region.StartLine)
	require.NotNil(t, phys.Region.StartColumn)
	assert.Equal(t, 5, *phys.Region.StartColumn)
	require.NotNil(t, phys.Region.Snippet)
	assert.Contains(t, *phys.Region.Snippet.Text, "db.query")
}

func TestSARIFReporterDeduplicatesRules(t *testing.T) {
	env := sampleEnvelope()
	// Two findings from the same detector should share one rule descriptor.
	dup := env.Findings[0]
	dup.ID = "f-3"
	dup.Line = 40
	env.Findings = append(env.Findings, dup)

	log := writeSARIF(t, env)

	rules := log.Runs[0].Tool.Driver.Rules
	require.Len(t, rules, 2)
	ids := []string{rules[0].ID, rules[1].ID}
	assert.ElementsMatch(t, []string{"sql-injection", "loop-bound"}, ids)
	assert.Len(t, log.Runs[0].Results, 3)
}

func TestMapSeverityToSARIFLevel(t *testing.T) {
	assert.Equal(t, sarif.LevelError, mapSeverityToSARIFLevel(schemas.SeverityCritical))
	assert.Equal(t, sarif.LevelError, mapSeverityToSARIFLevel(schemas.SeverityHigh))
	assert.Equal(t, sarif.LevelWarning, mapSeverityToSARIFLevel(schemas.SeverityMedium))
	assert.Equal(t, sarif.LevelNote, mapSeverityToSARIFLevel(schemas.SeverityLow))
	assert.Equal(t, sarif.LevelNote, mapSeverityToSARIFLevel(schemas.SeverityInfo))
}
