// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/lancet/internal/config"
)

func testConfig(format string) config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      format,
		ServiceName: "lancet-test",
	}
}

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)

func TestInitializeJSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(testConfig("json"), buf)

	GetLogger().Info("scan started", zap.String("scan_id", "abc"))

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "scan started", entry["msg"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, "lancet-test", entry["logger"])
}

func TestInitializeConsoleFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(testConfig("console"), buf)

	GetLogger().Warn("pattern dropped")
	assert.Contains(t, buf.String(), "pattern dropped")
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testConfig("json")
	cfg.Level = "error"
	buf := &syncBuffer{}
	Initialize(cfg, buf)

	GetLogger().Info("quiet")
	GetLogger().Error("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(testConfig("json"), first)
	Initialize(testConfig("json"), second)

	GetLogger().Info("once")
	assert.Contains(t, first.String(), "once")
	assert.Empty(t, second.String())
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Must never return nil, even before Initialize runs.
	logger := GetLogger()
	require.NotNil(t, logger)
}
