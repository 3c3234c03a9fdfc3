package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/ingest"
	"newsradar/internal/logger"
	"newsradar/internal/queue"
)

// NewRunWorkerCmd creates the run-worker command.
func NewRunWorkerCmd() *cobra.Command {
	var consumerName string

	cmd := &cobra.Command{
		Use:   "run-worker",
		Short: "Start the ingestion worker",
		Long: `Start the ingestion worker.

The worker reconciles the vector index against the article store, then
consumes the ingestion stream: each message is classified for financial
relevance, embedded, assigned to a cluster and persisted. Messages that
keep failing are moved to the dead-letter stream.

Multiple workers can run in parallel; each needs a distinct consumer name
(one is generated when the flag is omitted).

Example:
  newsradar run-worker --consumer worker-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), consumerName)
		},
	}

	cmd.Flags().StringVar(&consumerName, "consumer", "", "consumer name within the group (default: generated)")
	return cmd
}

func runWorker(ctx context.Context, consumerName string) error {
	log := logger.Get()
	cfg := config.Get()
	if err := cfg.ValidateService(); err != nil {
		return err
	}
	if consumerName == "" {
		consumerName = "worker-" + uuid.NewString()[:8]
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
	ingestor, index, err := buildIngestor(ctx, db, client, cfg)
	if err != nil {
		return err
	}

	redisClient, err := queue.NewClient(cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	consumer := queue.NewConsumer(redisClient, queue.ConsumerOptions{
		Stream:        cfg.Queue.Stream,
		Group:         cfg.Queue.Group,
		Consumer:      consumerName,
		Prefetch:      cfg.Queue.Prefetch,
		MaxDeliveries: int64(cfg.Queue.MaxDeliveries),
	})

	worker := ingest.NewWorker(consumer, ingestor)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	log.Info("Ingestion worker starting", "consumer", consumerName, "stream", cfg.Queue.Stream)
	err = worker.Run(runCtx)

	// Final snapshot so a clean shutdown persists the index tail. Any
	// background snapshot must finish first or the writes could interleave.
	ingestor.WaitSnapshots()
	if snapErr := index.Snapshot(); snapErr != nil {
		log.Error("Final index snapshot failed", "error", snapErr)
	}

	if err == context.Canceled {
		fmt.Println("Worker stopped.")
		return nil
	}
	return err
}
