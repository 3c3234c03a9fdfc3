package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
)

// NewAnalyseCmd creates the analyse command.
func NewAnalyseCmd() *cobra.Command {
	var (
		windowHours int
		topK        int
		async       bool
	)

	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Rank recent clusters and enrich the hottest into stories",
		Long: `Run one ranking and enrichment pass.

Clusters of the last --window hours are scored, the top --top-k are
enriched into stories, and the result is printed as JSON. Without a model
API key the stories degrade to fallbacks (first title, no draft).

Enrichment calls run one at a time; pass --async to run them
concurrently (bounded by analysis.concurrency). Output order is by score
either way.

Examples:
  newsradar analyse
  newsradar analyse --window 48 --top-k 10 --async`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyse(cmd.Context(), windowHours, topK, async)
		},
	}

	cmd.Flags().IntVar(&windowHours, "window", 24, "time window in hours (1-168)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "clusters to enrich (default from config)")
	cmd.Flags().BoolVar(&async, "async", false, "enrich clusters concurrently")
	return cmd
}

func runAnalyse(ctx context.Context, windowHours, topK int, async bool) error {
	cfg := config.Get()
	if windowHours < 1 || windowHours > 168 {
		return fmt.Errorf("window must be within 1-168 hours, got %d", windowHours)
	}
	if !async {
		sequential := *cfg
		sequential.Analysis.Concurrency = 1
		cfg = &sequential
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}
	analyzer, err := buildAnalyzer(db, client, cfg)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyse(ctx, windowHours, topK)
	if err != nil {
		return err
	}

	logger.Info("Analysis finished", "clusters", result.TotalClusters, "stories", len(result.Stories))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
