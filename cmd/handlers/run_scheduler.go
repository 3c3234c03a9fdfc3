package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
	"newsradar/internal/queue"
	"newsradar/internal/scheduler"
	"newsradar/internal/scraper"
)

// NewRunSchedulerCmd creates the run-scheduler command.
func NewRunSchedulerCmd() *cobra.Command {
	var sourcesFile string

	cmd := &cobra.Command{
		Use:   "run-scheduler",
		Short: "Start the scraping scheduler",
		Long: `Start the scraping scheduler.

Sources are read from a JSON file (see scheduler.sources_file). The
scheduler runs every scraper immediately on start and then on a fixed
interval, publishing newly seen article URLs to the ingestion stream. A
scraper that fails repeatedly is disabled until restart.

Example:
  newsradar run-scheduler --sources sources.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), sourcesFile)
		},
	}

	cmd.Flags().StringVar(&sourcesFile, "sources", "", "sources JSON file (default from config)")
	return cmd
}

func runScheduler(ctx context.Context, sourcesFile string) error {
	log := logger.Get()
	cfg := config.Get()
	if err := cfg.ValidateService(); err != nil {
		return err
	}
	if sourcesFile == "" {
		sourcesFile = cfg.Scheduler.SourcesFile
	}
	if sourcesFile == "" {
		return fmt.Errorf("no sources file: pass --sources or set scheduler.sources_file")
	}

	configs, err := scraper.LoadConfigs(sourcesFile)
	if err != nil {
		return err
	}
	scrapers := make([]scraper.Scraper, 0, len(configs))
	for _, sc := range configs {
		s, err := scraper.New(sc)
		if err != nil {
			return err
		}
		scrapers = append(scrapers, s)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Bootstrap the seen-URL set so restarts do not republish the corpus.
	seenURLs, err := db.Articles().URLs(ctx)
	if err != nil {
		return err
	}

	redisClient, err := queue.NewClient(cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	publisher := queue.NewPublisher(redisClient, cfg.Queue.Stream)

	sched := scheduler.New(scrapers, publisher, seenURLs, scheduler.Options{
		Interval:    time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute,
		RunTimeout:  cfg.Scheduler.RunTimeout,
		MaxFailures: cfg.Scheduler.MaxFailures,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	log.Info("Scheduler starting", "sources", len(scrapers), "interval_minutes", cfg.Scheduler.IntervalMinutes)
	if err := sched.Run(runCtx); err != context.Canceled {
		return err
	}
	fmt.Println("Scheduler stopped.")
	return nil
}
