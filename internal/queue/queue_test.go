package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"newsradar/internal/core"
)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func testConsumer(client *redis.Client, maxDeliveries int64) *Consumer {
	return NewConsumer(client, ConsumerOptions{
		Stream:        "news:ingest",
		Group:         "ingest-workers",
		Consumer:      "worker-1",
		Prefetch:      10,
		MaxDeliveries: maxDeliveries,
		Block:         10 * time.Millisecond,
		MinIdle:       0,
	})
}

func TestPublishAndFetch(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	pub := NewPublisher(client, "news:ingest")
	consumer := testConsumer(client, 3)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	msg := core.ArticleMessage{
		SourceName:  "Reuters",
		URL:         "https://example.com/a",
		Title:       "Central bank raises rates",
		Content:     "Markets react to the decision.",
		PublishedAt: "2026-01-10T09:30:00Z",
	}
	if err := pub.Publish(ctx, msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deliveries, err := consumer.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}

	var decoded core.ArticleMessage
	if err := json.Unmarshal(deliveries[0].Payload, &decoded); err != nil {
		t.Fatalf("payload did not round-trip: %v", err)
	}
	if decoded.URL != msg.URL || decoded.Title != msg.Title {
		t.Errorf("decoded message mismatch: %+v", decoded)
	}
}

func TestFetch_EmptyStreamReturnsNoError(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	consumer := testConsumer(client, 3)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	deliveries, err := consumer.Fetch(ctx)
	if err != nil {
		t.Fatalf("empty fetch should not error: %v", err)
	}
	if len(deliveries) != 0 {
		t.Errorf("expected no deliveries, got %d", len(deliveries))
	}
}

func TestInit_ToleratesExistingGroup(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	consumer := testConsumer(client, 3)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("second init should be a no-op: %v", err)
	}
}

func TestAckRemovesPending(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	pub := NewPublisher(client, "news:ingest")
	consumer := testConsumer(client, 3)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := pub.Publish(ctx, core.ArticleMessage{URL: "https://example.com/a"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deliveries, err := consumer.Fetch(ctx)
	if err != nil || len(deliveries) != 1 {
		t.Fatalf("fetch failed: %v (%d deliveries)", err, len(deliveries))
	}
	if err := consumer.Ack(ctx, deliveries[0].ID); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	pending, err := client.XPending(ctx, "news:ingest", "ingest-workers").Result()
	if err != nil {
		t.Fatalf("xpending failed: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected 0 pending after ack, got %d", pending.Count)
	}
}

func TestClaimStale_RedeliversUnacked(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	pub := NewPublisher(client, "news:ingest")
	consumer := testConsumer(client, 3)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := pub.Publish(ctx, core.ArticleMessage{URL: "https://example.com/a"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Read but never ack, then simulate a restarted worker claiming it.
	first, err := consumer.Fetch(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("fetch failed: %v (%d deliveries)", err, len(first))
	}
	consumer.Nack(ctx, first[0].ID)

	claimed, err := consumer.ClaimStale(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 redelivery, got %d", len(claimed))
	}
	if claimed[0].ID != first[0].ID {
		t.Errorf("claimed a different message: %s vs %s", claimed[0].ID, first[0].ID)
	}
}

func TestClaimStale_DeadLettersExhaustedMessages(t *testing.T) {
	_, client := newTestQueue(t)
	ctx := context.Background()

	pub := NewPublisher(client, "news:ingest")
	consumer := testConsumer(client, 2)
	if err := consumer.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := pub.Publish(ctx, core.ArticleMessage{URL: "https://example.com/poison"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if _, err := consumer.Fetch(ctx); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	// Each claim bumps the delivery counter; the budget is 2 deliveries.
	for i := 0; i < 3; i++ {
		if _, err := consumer.ClaimStale(ctx); err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
	}

	dead, err := client.XLen(ctx, consumer.DeadLetterStream()).Result()
	if err != nil {
		t.Fatalf("xlen failed: %v", err)
	}
	if dead != 1 {
		t.Errorf("expected 1 dead-lettered message, got %d", dead)
	}

	pending, err := client.XPending(ctx, "news:ingest", "ingest-workers").Result()
	if err != nil {
		t.Fatalf("xpending failed: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("dead-lettered message should be acked, %d still pending", pending.Count)
	}
}
