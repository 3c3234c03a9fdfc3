package ingest

import (
	"context"
	"encoding/json"

	"newsradar/internal/core"
	"newsradar/internal/logger"
	"newsradar/internal/metrics"
	"newsradar/internal/queue"
)

// Consumer abstracts the queue side of the worker. *queue.Consumer
// satisfies it.
type Consumer interface {
	Init(ctx context.Context) error
	Fetch(ctx context.Context) ([]queue.Delivery, error)
	ClaimStale(ctx context.Context) ([]queue.Delivery, error)
	Ack(ctx context.Context, id string) error
	Nack(ctx context.Context, id string)
}

// Worker consumes the ingestion stream until its context is cancelled.
type Worker struct {
	consumer Consumer
	ingestor *Ingestor
}

// NewWorker creates a worker over one consumer.
func NewWorker(consumer Consumer, ingestor *Ingestor) *Worker {
	return &Worker{consumer: consumer, ingestor: ingestor}
}

// Run reconciles the index, then consumes deliveries until cancellation.
// Stale pending entries are claimed before each fetch so redeliveries and
// crashed peers' work are picked up.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.Init(ctx); err != nil {
		return err
	}
	if err := w.ingestor.Reconcile(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		claimed, err := w.consumer.ClaimStale(ctx)
		if err != nil {
			logger.Error("Failed to claim stale deliveries", err)
		}
		for _, delivery := range claimed {
			w.handle(ctx, delivery)
		}

		fetched, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Failed to fetch deliveries", err)
			continue
		}
		for _, delivery := range fetched {
			w.handle(ctx, delivery)
		}
	}
}

// handle processes one delivery. Malformed payloads are acked and dropped;
// processing errors leave the delivery pending for redelivery.
func (w *Worker) handle(ctx context.Context, delivery queue.Delivery) {
	var msg core.ArticleMessage
	if err := json.Unmarshal(delivery.Payload, &msg); err != nil {
		logger.Error("Malformed article message, dropping", err, "id", delivery.ID)
		metrics.ArticlesIngested.WithLabelValues("failed").Inc()
		w.ack(ctx, delivery.ID)
		return
	}

	outcome, err := w.ingestor.Process(ctx, msg)
	if err != nil {
		logger.Error("Failed to process article, leaving for redelivery", err,
			"id", delivery.ID, "url", msg.URL, "deliveries", delivery.Deliveries)
		metrics.ArticlesIngested.WithLabelValues("failed").Inc()
		w.consumer.Nack(ctx, delivery.ID)
		return
	}

	logger.Debug("Delivery processed", "id", delivery.ID, "status", string(outcome.Status))
	w.ack(ctx, delivery.ID)
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.consumer.Ack(ctx, id); err != nil {
		logger.Error("Failed to ack delivery", err, "id", id)
	}
}
