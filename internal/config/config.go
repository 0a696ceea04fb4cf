// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Fields are public so
// viper can unmarshal into them; consumers receive the sections they need
// rather than the whole struct.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	// Scan gets its marching orders from CLI flags, not the config file.
	Scan ScanConfig `mapstructure:"-" yaml:"-"`
}

// ColorConfig defines the color scheme for console log output.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// LoggerConfig defines settings for the application logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// EngineConfig defines settings for the scan engine: input discovery and the
// worker pool that fans files out across detectors.
type EngineConfig struct {
	WorkerConcurrency int `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	QueueSize         int `mapstructure:"queue_size" yaml:"queue_size"`

	// IncludeExtensions routes files to a parser. Extensions include the dot.
	IncludeExtensions []string `mapstructure:"include_extensions" yaml:"include_extensions"`
	// ExcludeDirs are directory names skipped entirely during discovery.
	ExcludeDirs []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
	// ExcludeSuffixes drops files like minified bundles that only produce noise.
	ExcludeSuffixes []string `mapstructure:"exclude_suffixes" yaml:"exclude_suffixes"`

	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size"` // bytes
}

// AnalysisConfig defines settings shared by every detector.
type AnalysisConfig struct {
	// StrictMode disables annotation and trusted-call suppression so every
	// candidate finding is reported.
	StrictMode bool `mapstructure:"strict_mode" yaml:"strict_mode"`

	// MaxAncestorHops bounds the upward AST walk used by guard and
	// suppression checks.
	MaxAncestorHops int `mapstructure:"max_ancestor_hops" yaml:"max_ancestor_hops"`

	// PatternTimeout bounds a single catalogue regex evaluation.
	PatternTimeout time.Duration `mapstructure:"pattern_timeout" yaml:"pattern_timeout"`

	// Detectors selects which detectors run. Empty means all.
	Detectors []string `mapstructure:"detectors" yaml:"detectors"`
}

// RulesConfig points at user-supplied rule packs that extend the built-in
// source, sanitizer, and suppression catalogues.
type RulesConfig struct {
	Packs []string `mapstructure:"packs" yaml:"packs"`
}

// DatabaseConfig defines settings for the optional findings store.
type DatabaseConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// ReportConfig defines default output settings, overridable per scan by flags.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // console, json, sarif, checkstyle
	Output string `mapstructure:"output" yaml:"output"` // empty means stdout
}

// ScanConfig holds the per-invocation parameters assembled from CLI flags.
type ScanConfig struct {
	Targets     []string `mapstructure:"-" yaml:"-"`
	Format      string   `mapstructure:"-" yaml:"-"`
	Output      string   `mapstructure:"-" yaml:"-"`
	Concurrency int      `mapstructure:"-" yaml:"-"`
	DiffBase    string   `mapstructure:"-" yaml:"-"`
	FailOn      string   `mapstructure:"-" yaml:"-"`
	NoProgress  bool     `mapstructure:"-" yaml:"-"`
}

// SetDefaults establishes the default values for all configuration settings
// on the provided viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger Defaults --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine Defaults --
	v.SetDefault("engine.worker_concurrency", 8)
	v.SetDefault("engine.queue_size", 256)
	v.SetDefault("engine.include_extensions", []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".html", ".htm"})
	v.SetDefault("engine.exclude_dirs", []string{"node_modules", ".git", "dist", "build", "vendor", "coverage"})
	v.SetDefault("engine.exclude_suffixes", []string{".min.js", ".bundle.js", ".d.ts"})
	v.SetDefault("engine.max_file_size", int64(4*1024*1024))

	// -- Analysis Defaults --
	v.SetDefault("analysis.strict_mode", false)
	v.SetDefault("analysis.max_ancestor_hops", 16)
	v.SetDefault("analysis.pattern_timeout", 100*time.Millisecond)
	v.SetDefault("analysis.detectors", []string{})

	// -- Rules Defaults --
	v.SetDefault("rules.packs", []string{})

	// -- Database Defaults --
	v.SetDefault("database.url", "")
	v.SetDefault("database.batch_size", 100)
	v.SetDefault("database.flush_interval", 2*time.Second)

	// -- Report Defaults --
	v.SetDefault("report.format", "console")
	v.SetDefault("report.output", "")
}

// NewDefaultConfig returns a Config populated entirely from defaults. It is
// intended for tests and for components that need a sane baseline without a
// config file.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are hardcoded above; failing to unmarshal them is a bug.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a Config from a fully initialized
// viper instance (file, environment, and flag bindings applied).
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Secrets arrive via environment only; BindEnv keeps them out of files.
	_ = v.BindEnv("database.url", "LANCET_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration invariants that viper cannot express.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.Logger.Format)
	}

	if c.Engine.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be positive, got %d", c.Engine.WorkerConcurrency)
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive, got %d", c.Engine.QueueSize)
	}
	if c.Engine.MaxFileSize <= 0 {
		return fmt.Errorf("engine.max_file_size must be positive, got %d", c.Engine.MaxFileSize)
	}
	if len(c.Engine.IncludeExtensions) == 0 {
		return fmt.Errorf("engine.include_extensions must not be empty")
	}

	if c.Analysis.MaxAncestorHops < 10 || c.Analysis.MaxAncestorHops > 20 {
		return fmt.Errorf("analysis.max_ancestor_hops must be between 10 and 20, got %d", c.Analysis.MaxAncestorHops)
	}
	if c.Analysis.PatternTimeout <= 0 {
		return fmt.Errorf("analysis.pattern_timeout must be positive, got %s", c.Analysis.PatternTimeout)
	}

	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database.batch_size must be positive, got %d", c.Database.BatchSize)
	}
	if c.Database.FlushInterval <= 0 {
		return fmt.Errorf("database.flush_interval must be positive, got %s", c.Database.FlushInterval)
	}

	switch c.Report.Format {
	case "console", "json", "sarif", "checkstyle":
	default:
		return fmt.Errorf("report.format must be one of console, json, sarif, checkstyle; got %q", c.Report.Format)
	}

	return nil
}
