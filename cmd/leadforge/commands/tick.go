package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTickCommand(version string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler evaluation pass",
		Long: `Run a single drip scheduler tick and print the report.

Useful for cron-driven deployments and for inspecting what the scheduler
would do right now. The pass is idempotent: ticking again with no elapsed
time performs no sends.`,
		Example: `  # One evaluation pass against the configured store
  leadforge tick

  # Machine-readable report
  leadforge tick --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setupApp(ctx, version)
			if err != nil {
				return err
			}
			defer a.shutdown()

			report, err := a.scheduler.Tick(ctx)
			if err != nil {
				return fmt.Errorf("tick failed: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("Tick completed in %s\n", report.Duration)
			fmt.Printf("  evaluated: %d\n", report.Evaluated)
			fmt.Printf("  due:       %d\n", report.Due)
			fmt.Printf("  sent:      %d\n", report.Sent)
			fmt.Printf("  failed:    %d\n", report.Failed)
			fmt.Printf("  skipped:   %d\n", report.Skipped)
			fmt.Printf("  exhausted: %d\n", report.Exhausted)
			fmt.Printf("  completed: %d\n", report.Completed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the report as JSON")
	return cmd
}
