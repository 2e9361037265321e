package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leadforge/leadforge/pkg/catalog"
	"github.com/leadforge/leadforge/pkg/engine"
)

func newCampaignsCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Inspect and seed campaigns",
	}

	cmd.AddCommand(newCampaignsListCommand(version))
	cmd.AddCommand(newCampaignsSeedCommand(version))
	return cmd
}

func newCampaignsListCommand(version string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaign definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setupApp(ctx, version)
			if err != nil {
				return err
			}
			defer a.shutdown()

			campaigns, err := a.campaigns.ListCampaigns(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(campaigns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTEPS\tCREATED")
			for _, c := range campaigns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					c.ID, c.Name, c.Status, len(c.Sequence), c.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// applyTemplates creates a campaign for each template whose name is not
// already taken. Existing campaigns are never touched: sequences are
// immutable, so an edited template only takes effect under a new name.
func applyTemplates(ctx context.Context, campaigns *engine.CampaignManager, templates []catalog.Template) (int, error) {
	existing, err := campaigns.ListCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		taken[c.Name] = struct{}{}
	}

	created := 0
	for _, tpl := range templates {
		if _, ok := taken[tpl.Name]; ok {
			continue
		}
		if _, err := campaigns.CreateCampaign(ctx, tpl.Name, tpl.Sequence); err != nil {
			return created, fmt.Errorf("failed to create campaign %q: %w", tpl.Name, err)
		}
		taken[tpl.Name] = struct{}{}
		created++
	}
	return created, nil
}

func newCampaignsSeedCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <path>",
		Short: "Create campaigns from template files",
		Long: `Load campaign templates from a YAML file or directory and create a
campaign for each one. Templates are validated before anything is written;
a template that fails validation is skipped with a warning.`,
		Example: `  # Seed every template under ./templates
  leadforge campaigns seed ./templates`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setupApp(ctx, version)
			if err != nil {
				return err
			}
			defer a.shutdown()

			loader := catalog.NewLoader(a.logger.Zerolog())
			templates, err := loader.LoadFromPaths(ctx, []string{args[0]})
			if err != nil {
				return fmt.Errorf("failed to load templates: %w", err)
			}
			if len(templates) == 0 {
				return fmt.Errorf("no templates found under %s", args[0])
			}

			created := 0
			for _, tpl := range templates {
				campaign, err := a.campaigns.CreateCampaign(ctx, tpl.Name, tpl.Sequence)
				if err != nil {
					a.logger.WithError(err).WithField("template", tpl.Name).Warn("skipping template")
					continue
				}
				fmt.Printf("created campaign %s (%s) with %d steps\n",
					campaign.Name, campaign.ID, len(campaign.Sequence))
				created++
			}

			fmt.Printf("%d of %d templates seeded\n", created, len(templates))
			return nil
		},
	}
	return cmd
}
