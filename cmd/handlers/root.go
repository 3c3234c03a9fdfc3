// Package handlers wires the CLI subcommands to the pipeline components.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsradar",
		Short: "newsradar detects hot financial stories from scraped news",
		Long: `newsradar runs the hot-story pipeline: scheduled scraping into a
durable queue, an ingestion worker that classifies, embeds and clusters
articles, and an analysis job that ranks clusters by hotness and enriches
the top ones into publishable stories.

Each pipeline stage runs as its own subcommand so the processes can be
deployed and scaled independently:

  newsradar init-db         # apply database migrations
  newsradar seed-sources    # register scraping sources
  newsradar run-scheduler   # scrape sources and publish to the queue
  newsradar run-worker      # consume the queue into the store and index
  newsradar run-api         # HTTP API (health, ingest, analyse)
  newsradar analyse         # one-shot ranking and enrichment run`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .newsradar.yaml)")

	rootCmd.AddCommand(NewInitDBCmd())
	rootCmd.AddCommand(NewSeedSourcesCmd())
	rootCmd.AddCommand(NewRunAPICmd())
	rootCmd.AddCommand(NewRunWorkerCmd())
	rootCmd.AddCommand(NewRunSchedulerCmd())
	rootCmd.AddCommand(NewAnalyseCmd())

	return rootCmd
}

// Execute runs the root command. Exit code 1 on any error.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.App.LogLevel)
}
