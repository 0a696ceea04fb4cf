package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/detect"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/engine"
	"github.com/xkilldash9x/lancet/internal/findings"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting"
	"github.com/xkilldash9x/lancet/internal/rulepack"
)

// ErrFindingsAboveThreshold signals that the scan succeeded but produced at
// least one finding at or above the --fail-on severity. main translates it
// into exit code 1, distinct from operational failures.
var ErrFindingsAboveThreshold = errors.New("findings at or above the failure threshold")

// newScanCmd creates and configures the `scan` command.
func newScanCmd(v *viper.Viper) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Scans the given files or directories for taint-style vulnerabilities",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := v.BindPFlag("engine.worker_concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := v.BindPFlag("analysis.strict_mode", cmd.Flags().Lookup("strict")); err != nil {
				return err
			}
			if err := v.BindPFlag("report.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			return v.BindPFlag("report.output", cmd.Flags().Lookup("output"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			diffBase, _ := cmd.Flags().GetString("diff-base")
			failOn, _ := cmd.Flags().GetString("fail-on")
			noProgress, _ := cmd.Flags().GetBool("no-progress")

			cfg.Scan = config.ScanConfig{
				Targets:     args,
				Format:      cfg.Report.Format,
				Output:      cfg.Report.Output,
				Concurrency: cfg.Engine.WorkerConcurrency,
				DiffBase:    diffBase,
				FailOn:      failOn,
				NoProgress:  noProgress,
			}

			threshold, ok := schemas.ParseSeverity(cfg.Scan.FailOn)
			if !ok {
				return fmt.Errorf("invalid --fail-on severity %q", cfg.Scan.FailOn)
			}

			return runScan(ctx, cfg, threshold, logger)
		},
	}

	scanCmd.Flags().StringP("output", "o", "", "Report output path. Defaults to stdout.")
	scanCmd.Flags().StringP("format", "f", "console", "Report format: console, json, sarif, checkstyle.")
	scanCmd.Flags().IntP("concurrency", "j", 0, "Number of concurrent analysis workers. (Overrides config/env)")
	scanCmd.Flags().Bool("strict", false, "Disable annotation and trusted-call suppression.")
	scanCmd.Flags().String("diff-base", "", "Only scan files changed since this git revision.")
	scanCmd.Flags().String("fail-on", "high", "Lowest severity that fails the scan: critical, high, medium, low, info.")
	scanCmd.Flags().Bool("no-progress", false, "Disable the progress bar.")

	return scanCmd
}

// runScan assembles the analysis stack and executes one scan end to end.
func runScan(ctx context.Context, cfg *config.Config, threshold schemas.Severity, logger *zap.Logger) error {
	fs := afero.NewOsFs()

	var overlays map[string]detect.Overlay
	if len(cfg.Rules.Packs) > 0 {
		var err error
		overlays, err = rulepack.Load(fs, cfg.Rules.Packs, Version, logger)
		if err != nil {
			return fmt.Errorf("loading rule packs: %w", err)
		}
	}

	registry, err := detect.NewRegistry(cfg.Analysis, overlays, logger)
	if err != nil {
		return err
	}

	// The findings store is optional; without a database URL the scan only
	// reports.
	var sink chan schemas.Finding
	var processor *findings.Processor
	if cfg.Database.URL != "" {
		db, err := findings.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to findings store: %w", err)
		}
		defer db.Close()

		sink = make(chan schemas.Finding, cfg.Engine.QueueSize)
		processor = findings.NewProcessor(sink, db, cfg.Database, logger)
		if err := processor.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing findings store: %w", err)
		}
		processor.Start(ctx)
	}

	eng := engine.New(cfg, fs, registry, sink, Version, logger)
	envelope, err := eng.Run(ctx, cfg.Scan.Targets)

	if processor != nil {
		close(sink)
		processor.Stop()
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Scan aborted by user signal")
		}
		return err
	}

	reporter, err := reporting.New(cfg.Scan.Format, cfg.Scan.Output, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(envelope); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	logger.Info("Report written",
		zap.String("format", cfg.Scan.Format),
		zap.String("output", cfg.Scan.Output),
		zap.Duration("scan_duration", envelope.Stats.Duration),
	)

	if failsThreshold(envelope, threshold) {
		return ErrFindingsAboveThreshold
	}
	return nil
}

// failsThreshold reports whether any finding reaches the failure severity.
func failsThreshold(envelope *schemas.ResultEnvelope, threshold schemas.Severity) bool {
	for _, f := range envelope.Findings {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
