package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReportCmd creates the 'report' subcommand.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Render the report from the persisted output table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer writeMetrics(rt)

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			locations, err := a.WriteReport(cmd.Context())
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			for _, loc := range locations {
				fmt.Fprintln(cmd.OutOrStdout(), loc)
			}
			return nil
		},
	}
}
