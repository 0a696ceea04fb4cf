package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet/internal/analysis/detect"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/observability"
)

// newRulesCmd creates the `rules` command, which lists the built-in
// detectors so users can reference them in config and rule packs.
func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Lists the built-in detectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewDefaultConfig()
			registry, err := detect.NewRegistry(cfg.Analysis, nil, observability.GetLogger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range registry.Detectors() {
				fmt.Fprintf(out, "%s\n", d.Name())
				fmt.Fprintf(out, "  %s\n", d.Description())
				if cwe := d.CWE(); len(cwe) > 0 {
					fmt.Fprintf(out, "  %s\n", strings.Join(cwe, ", "))
				}
			}
			return nil
		},
	}
}
