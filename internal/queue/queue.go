// Package queue provides durable article delivery over a Redis stream with
// a consumer group: manual acks, bounded redelivery and a dead-letter
// stream for messages that exhaust their budget.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"newsradar/internal/core"
	"newsradar/internal/logger"
)

// payloadField is the stream entry field holding the JSON article message.
const payloadField = "payload"

// publishAttempts bounds the capped-backoff retry loop in Publish.
const publishAttempts = 3

// NewClient connects to Redis using a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Publisher appends article messages to the ingestion stream.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher creates a publisher for the given stream.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish appends one message. Transient failures are retried with capped
// exponential backoff; after the budget is spent the error is returned and
// the caller drops the message (logged, never re-queued here).
func (p *Publisher) Publish(ctx context.Context, msg core.ArticleMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal article message: %w", err)
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]interface{}{payloadField: body},
		}).Err()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to publish after %d attempts: %w", publishAttempts, lastErr)
}

// Delivery is one message handed to the worker. Payload is the raw JSON so
// malformed messages can still be acked and dropped.
type Delivery struct {
	ID         string
	Payload    []byte
	Deliveries int64
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Stream        string
	Group         string
	Consumer      string        // Per-worker consumer name within the group
	Prefetch      int           // XREADGROUP count, default 10
	MaxDeliveries int64         // Redeliveries before dead-lettering, default 3
	Block         time.Duration // Read block time, default 5s
	MinIdle       time.Duration // Pending age before a claim, default 30s
}

// Consumer reads deliveries from the stream with bounded prefetch.
type Consumer struct {
	client *redis.Client
	opts   ConsumerOptions
}

// NewConsumer creates a consumer. Call Init before Fetch.
func NewConsumer(client *redis.Client, opts ConsumerOptions) *Consumer {
	if opts.Prefetch <= 0 {
		opts.Prefetch = 10
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 3
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.MinIdle < 0 {
		opts.MinIdle = 30 * time.Second
	}
	return &Consumer{client: client, opts: opts}
}

// DeadLetterStream returns the stream that receives exhausted messages.
func (c *Consumer) DeadLetterStream() string {
	return c.opts.Stream + ":dead"
}

// Init creates the consumer group, tolerating a pre-existing one.
func (c *Consumer) Init(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Fetch returns up to Prefetch new deliveries, blocking up to Block when
// the stream is empty. An empty slice (no error) means the block expired.
func (c *Consumer) Fetch(ctx context.Context) ([]Delivery, error) {
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  []string{c.opts.Stream, ">"},
		Count:    int64(c.opts.Prefetch),
		Block:    c.opts.Block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var deliveries []Delivery
	for _, stream := range res {
		for _, msg := range stream.Messages {
			deliveries = append(deliveries, Delivery{
				ID:         msg.ID,
				Payload:    payloadBytes(msg.Values),
				Deliveries: 1,
			})
		}
	}
	return deliveries, nil
}

// ClaimStale re-fetches pending messages whose consumer went away or
// nacked them. Entries past the delivery budget move to the dead-letter
// stream instead. Called on worker start and between fetches.
func (c *Consumer) ClaimStale(ctx context.Context) ([]Delivery, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.opts.Stream,
		Group:  c.opts.Group,
		Start:  "-",
		End:    "+",
		Count:  int64(c.opts.Prefetch),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to inspect pending entries: %w", err)
	}

	var claimIDs []string
	retries := make(map[string]int64)
	for _, entry := range pending {
		if entry.Idle < c.opts.MinIdle {
			continue
		}
		claimIDs = append(claimIDs, entry.ID)
		retries[entry.ID] = entry.RetryCount
	}
	if len(claimIDs) == 0 {
		return nil, nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.opts.Stream,
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		MinIdle:  c.opts.MinIdle,
		Messages: claimIDs,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim pending entries: %w", err)
	}

	var deliveries []Delivery
	for _, msg := range claimed {
		delivery := Delivery{
			ID:         msg.ID,
			Payload:    payloadBytes(msg.Values),
			Deliveries: retries[msg.ID],
		}
		if delivery.Deliveries > c.opts.MaxDeliveries {
			if err := c.deadLetter(ctx, delivery); err != nil {
				logger.Error("Failed to dead-letter message", err, "id", delivery.ID)
				continue
			}
			logger.Warn("Message exhausted redelivery budget, dead-lettered",
				"id", delivery.ID, "deliveries", delivery.Deliveries)
			continue
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, nil
}

// Ack acknowledges a processed (or deliberately dropped) delivery.
func (c *Consumer) Ack(ctx context.Context, id string) error {
	return c.client.XAck(ctx, c.opts.Stream, c.opts.Group, id).Err()
}

// Nack leaves the delivery pending so a later ClaimStale redelivers it.
func (c *Consumer) Nack(ctx context.Context, id string) {
	logger.Debug("Message left pending for redelivery", "id", id)
}

func (c *Consumer) deadLetter(ctx context.Context, delivery Delivery) error {
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.DeadLetterStream(),
		Values: map[string]interface{}{payloadField: delivery.Payload},
	}).Err()
	if err != nil {
		return err
	}
	return c.Ack(ctx, delivery.ID)
}

func payloadBytes(values map[string]interface{}) []byte {
	if raw, ok := values[payloadField]; ok {
		if s, ok := raw.(string); ok {
			return []byte(s)
		}
	}
	return nil
}
