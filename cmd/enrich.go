package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/storage/xlsx"
)

// newEnrichCmd creates the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Look up emails for every record in the input workbook",
		Long: `Processes the input workbook one record at a time, appending one output row
per city candidate and email to the output table, then renders the report.
Failed lookups are recorded as ERROR rows and do not stop the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd, input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input workbook (overrides input.path)")
	return cmd
}

func runEnrich(cmd *cobra.Command, input string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer writeMetrics(rt)

	cfg := rt.cfg
	if input != "" {
		cfg.Input.Path = input
	}
	if err := cfg.ValidateEnrich(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()
	logger := a.Logger()

	records, err := xlsx.ReadRecords(cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	logger.Info("starting enrichment", zap.String("input", cfg.Input.Path), zap.Int("records", len(records)))

	proc, err := a.NewProcessor()
	if err != nil {
		return err
	}
	summary, runErr := proc.ProcessAll(ctx, records)
	logger.Info("enrichment finished",
		zap.Int("records", summary.Records),
		zap.Int("rows", summary.Rows),
		zap.Int("errors", summary.Errors),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("process records: %w", runErr)
	}

	// Rows appended before an interrupt are still rendered.
	if _, err := a.WriteReport(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	return nil
}
