// Package sites implements commands for inspecting the configured crawl
// sites.
package sites

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leobrain/crawler/cmd/common"
	"github.com/leobrain/crawler/internal/sources"
)

// Command returns the sites command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect configured crawl sites",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newValidateCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sites",
		Long:  `List every site from the sites file in a formatted table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			registry, err := sources.Load(deps.Config.Crawl.SitesFile)
			if err != nil {
				return fmt.Errorf("failed to load sites: %w", err)
			}

			renderTable(registry.All())
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the sites file",
		Long: `Load the sites file and report whether every site entry passes
validation, without connecting to any backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			path := deps.Config.Crawl.SitesFile
			registry, err := sources.Load(path)
			if err != nil {
				return fmt.Errorf("sites file %s is invalid: %w", path, err)
			}

			fmt.Printf("%s: %d sites valid\n", path, registry.Len())
			return nil
		},
	}
}

// renderTable prints the sites to stdout.
func renderTable(sites []sources.SiteConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "Spider", "Feed URL", "Cron", "QPS", "Max Items", "Full Content", "Render"})

	for _, site := range sites {
		cron := site.Cron
		if cron == "" {
			cron = "-"
		}
		t.AppendRow(table.Row{
			site.Name,
			site.Spider,
			site.FeedURL,
			cron,
			site.QPS,
			site.MaxItems,
			site.FetchFullContent,
			site.UseRender,
		})
	}

	t.Render()
}
