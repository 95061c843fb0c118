// Package cmd implements the crawler's command-line interface. It provides
// the root command and the httpd, crawl, and sites subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leobrain/crawler/cmd/crawl"
	"github.com/leobrain/crawler/cmd/httpd"
	cmdsites "github.com/leobrain/crawler/cmd/sites"
)

// Build information, overridden through ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "crawler",
		Short: "Multi-site web content crawler",
		Long: `crawler ingests configured RSS feeds on a schedule, optionally fetches
full article pages, stores content bodies in MinIO and metadata in
Postgres, and serves a management API over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so its variables are visible to viper. A missing
	// file is fine; real environment variables win either way.
	_ = godotenv.Load()

	// Parse flags early so --config is known before reading configuration.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is config.yml in . or ./config)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("crawler %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(cmdsites.Command())
}

// initConfig points viper at the config file and the environment. The file
// is optional; settings can come from CRAWLER_* environment variables alone.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix("CRAWLER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	return nil
}
