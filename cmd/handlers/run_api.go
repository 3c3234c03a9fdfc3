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
	"newsradar/internal/server"
)

// NewRunAPICmd creates the run-api command.
func NewRunAPICmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "run-api",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API.

Endpoints:
  GET  /health   liveness plus dependency checks
  GET  /metrics  Prometheus metrics
  POST /ingest   synchronous single-article ingestion
  POST /analyse  ranking and enrichment over a time window

Examples:
  newsradar run-api
  newsradar run-api --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPI(cmd.Context(), host, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "bind host (default from config: 0.0.0.0)")
	return cmd
}

func runAPI(ctx context.Context, host string, port int) error {
	log := logger.Get()
	cfg := config.Get()
	if err := cfg.ValidateService(); err != nil {
		return err
	}

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
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
	ingestor, _, err := buildIngestor(ctx, db, client, cfg)
	if err != nil {
		return err
	}
	analyzer, err := buildAnalyzer(db, client, cfg)
	if err != nil {
		return err
	}

	srv := server.New(db, ingestor, analyzer, serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("API listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
