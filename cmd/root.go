// Package cmd wires the lancet CLI: configuration loading, logger setup, and
// the scan, rules, and version subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/observability"
)

// NewRootCommand builds a fresh root command. Each invocation gets its own
// viper instance so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "lancet",
		Short:         "lancet is a static taint-analysis scanner for JavaScript and TypeScript.",
		Long: `lancet scans JavaScript and TypeScript sources for taint-style
vulnerabilities: attacker-reachable input flowing into queries, buffer
indexes, loop bounds, dynamic requires, and similar sinks. It favors recall
over precision and is meant to run in CI alongside a reviewer.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeViper(v, cfgFile); err != nil {
				return err
			}

			var cfg config.Config
			if err := v.Unmarshal(&cfg); err != nil {
				// Fall back to a plain logger so the error is at least visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "lancet"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting lancet", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./lancet.yaml, then $HOME/.lancet/lancet.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newScanCmd(v))
	rootCmd.AddCommand(newRulesCmd())

	return rootCmd
}

// Execute runs the CLI with the given signal-aware context and returns the
// command error, if any, for main to translate into an exit code.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return err
}

// initializeViper reads the config file and environment variables into v.
func initializeViper(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".lancet"))
		}
		v.SetConfigName("lancet")
		v.SetConfigType("yaml")
	}

	config.SetDefaults(v)

	v.SetEnvPrefix("LANCET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults, env vars, and flags carry the day.
	}
	return nil
}
