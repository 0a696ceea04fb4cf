// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 8, cfg.Engine.WorkerConcurrency)
	assert.Contains(t, cfg.Engine.IncludeExtensions, ".ts")
	assert.Contains(t, cfg.Engine.ExcludeDirs, "node_modules")
	assert.Equal(t, 16, cfg.Analysis.MaxAncestorHops)
	assert.Equal(t, 100*time.Millisecond, cfg.Analysis.PatternTimeout)
	assert.Equal(t, "console", cfg.Report.Format)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperAppliesOverrides(t *testing.T) {
	v := viper.New()
	v.Set("analysis.strict_mode", true)
	v.Set("engine.worker_concurrency", 2)
	v.Set("report.format", "sarif")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Analysis.StrictMode)
	assert.Equal(t, 2, cfg.Engine.WorkerConcurrency)
	assert.Equal(t, "sarif", cfg.Report.Format)
}

func TestDatabaseURLFromEnvironment(t *testing.T) {
	t.Setenv("LANCET_DATABASE_URL", "postgres://lancet:pw@localhost:5432/findings")

	cfg, err := NewConfigFromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://lancet:pw@localhost:5432/findings", cfg.Database.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad logger format", func(c *Config) { c.Logger.Format = "xml" }},
		{"zero concurrency", func(c *Config) { c.Engine.WorkerConcurrency = 0 }},
		{"zero queue", func(c *Config) { c.Engine.QueueSize = 0 }},
		{"zero max file size", func(c *Config) { c.Engine.MaxFileSize = 0 }},
		{"no extensions", func(c *Config) { c.Engine.IncludeExtensions = nil }},
		{"hops below band", func(c *Config) { c.Analysis.MaxAncestorHops = 9 }},
		{"hops above band", func(c *Config) { c.Analysis.MaxAncestorHops = 21 }},
		{"zero pattern timeout", func(c *Config) { c.Analysis.PatternTimeout = 0 }},
		{"zero batch size", func(c *Config) { c.Database.BatchSize = 0 }},
		{"zero flush interval", func(c *Config) { c.Database.FlushInterval = 0 }},
		{"unknown report format", func(c *Config) { c.Report.Format = "pdf" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAncestorHopBandBoundaries(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.Analysis.MaxAncestorHops = 10
	assert.NoError(t, cfg.Validate())

	cfg.Analysis.MaxAncestorHops = 20
	assert.NoError(t, cfg.Validate())
}
