package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leadforge",
		Short: "LeadForge - Outreach Pipeline & Drip-Campaign Engine",
		Long: `LeadForge runs multi-touch outreach campaigns against a sales pipeline.

It tracks deals through the pipeline stage graph, enrolls prospects into
timed drip campaigns, and fires due campaign steps through the configured
outreach transport with at-least-once delivery.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand(version))
	rootCmd.AddCommand(newTickCommand(version))
	rootCmd.AddCommand(newCampaignsCommand(version))

	return rootCmd
}
