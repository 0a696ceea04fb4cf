package detect

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet/internal/config"
)

func TestRegistryDefaults(t *testing.T) {
	cfg := config.NewDefaultConfig().Analysis
	registry, err := NewRegistry(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	detectors := registry.Detectors()
	assert.Len(t, detectors, len(builtins))

	for _, d := range detectors {
		assert.NotEmpty(t, d.Name())
		assert.NotEmpty(t, d.Description())
		assert.NotEmpty(t, d.Recommendation())
		assert.NotEmpty(t, d.CWE())
	}
}

func TestRegistrySelection(t *testing.T) {
	cfg := config.NewDefaultConfig().Analysis
	cfg.Detectors = []string{RuleSQLInjection, RuleLoopBound}

	registry, err := NewRegistry(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	detectors := registry.Detectors()
	require.Len(t, detectors, 2)
	names := []string{detectors[0].Name(), detectors[1].Name()}
	assert.ElementsMatch(t, []string{RuleSQLInjection, RuleLoopBound}, names)
}

func TestRegistryRejectsUnknownDetector(t *testing.T) {
	cfg := config.NewDefaultConfig().Analysis
	cfg.Detectors = []string{"xss-teleporter"}

	_, err := NewRegistry(cfg, nil, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xss-teleporter")
}

func TestRegistryRejectsUnknownOverlayTarget(t *testing.T) {
	cfg := config.NewDefaultConfig().Analysis
	overlays := map[string]Overlay{"no-such-rule": {}}

	_, err := NewRegistry(cfg, overlays, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-rule")
}

func TestNamesSortedAndComplete(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(builtins))
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, RuleHardcodedJWT)
}
