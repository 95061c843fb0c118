// Package crawl implements the command that runs crawls once from the
// command line, without the scheduler or the HTTP server.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leobrain/crawler/cmd/common"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	var (
		site string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a crawl once and exit",
		Long: `Run a crawl for one site (--site) or for every configured site (--all)
and exit. Content is stored exactly as during scheduled runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if site == "" && !all {
				return errors.New("either --site or --all is required")
			}
			if site != "" && all {
				return errors.New("--site and --all are mutually exclusive")
			}
			return run(cmd.Context(), site, all)
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "name of the site to crawl")
	cmd.Flags().BoolVar(&all, "all", false, "crawl every configured site sequentially")

	return cmd
}

func run(ctx context.Context, site string, all bool) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	log := deps.Logger

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := common.NewCrawlStack(ctx, deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			log.Error("Failed to close crawl stack", "error", closeErr)
		}
	}()

	targets := []string{site}
	if all {
		targets = stack.Sites.Names()
	}

	var failed int
	for _, name := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stored, crawlErr := stack.Crawl(ctx, name)
		if crawlErr != nil {
			failed++
			log.Error("Crawl failed", "site", name, "error", crawlErr)
			fmt.Fprintf(os.Stderr, "%s: crawl failed: %v\n", name, crawlErr)
			continue
		}
		fmt.Printf("%s: %d new items stored\n", name, stored)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(targets))
	}
	return nil
}
