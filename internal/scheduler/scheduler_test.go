package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsradar/internal/core"
	"newsradar/internal/scraper"
)

type fakeScraper struct {
	name     string
	messages []core.ArticleMessage
	err      error
	calls    int
}

func (f *fakeScraper) Name() string    { return f.name }
func (f *fakeScraper) BaseURL() string { return "https://" + f.name + ".example.com" }
func (f *fakeScraper) Fetch(ctx context.Context) ([]core.ArticleMessage, error) {
	f.calls++
	return f.messages, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []core.ArticleMessage
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, msg core.ArticleMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func testOptions() Options {
	return Options{Interval: time.Hour, RunTimeout: time.Second, MaxFailures: 3}
}

func TestRunOnce_PublishesNewURLs(t *testing.T) {
	s := &fakeScraper{name: "feed", messages: []core.ArticleMessage{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/b", Title: "B"},
	}}
	pub := &fakePublisher{}

	sched := New([]scraper.Scraper{s}, pub, nil, testOptions())
	sched.RunOnce(context.Background())

	if pub.count() != 2 {
		t.Errorf("expected 2 published, got %d", pub.count())
	}
}

func TestRunOnce_SkipsSeenURLs(t *testing.T) {
	s := &fakeScraper{name: "feed", messages: []core.ArticleMessage{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/b", Title: "B"},
	}}
	pub := &fakePublisher{}

	sched := New([]scraper.Scraper{s}, pub, []string{"https://example.com/a"}, testOptions())
	sched.RunOnce(context.Background())

	if pub.count() != 1 {
		t.Fatalf("expected 1 published, got %d", pub.count())
	}
	if pub.published[0].URL != "https://example.com/b" {
		t.Errorf("published the wrong URL: %s", pub.published[0].URL)
	}

	// A second round lists the same URLs; nothing new goes out.
	sched.RunOnce(context.Background())
	if pub.count() != 1 {
		t.Errorf("re-listed URLs were republished: %d total", pub.count())
	}
}

func TestRunOnce_DisablesAfterConsecutiveFailures(t *testing.T) {
	s := &fakeScraper{name: "flaky", err: errors.New("connection refused")}
	pub := &fakePublisher{}

	sched := New([]scraper.Scraper{s}, pub, nil, testOptions())
	for i := 0; i < 5; i++ {
		sched.RunOnce(context.Background())
	}

	if s.calls != 3 {
		t.Errorf("scraper should be disabled after 3 failures, got %d calls", s.calls)
	}
}

func TestRunOnce_FailureResetOnSuccess(t *testing.T) {
	s := &fakeScraper{name: "flaky", err: errors.New("timeout")}
	pub := &fakePublisher{}

	sched := New([]scraper.Scraper{s}, pub, nil, testOptions())
	sched.RunOnce(context.Background())
	sched.RunOnce(context.Background())

	// Recovers before the third strike; streak resets.
	s.err = nil
	s.messages = []core.ArticleMessage{{URL: "https://example.com/a"}}
	sched.RunOnce(context.Background())

	s.err = errors.New("timeout")
	s.messages = nil
	sched.RunOnce(context.Background())
	sched.RunOnce(context.Background())
	sched.RunOnce(context.Background())

	// 2 failures + 1 success + 3 failures to re-disable = 6 calls.
	if s.calls != 6 {
		t.Errorf("expected 6 calls, got %d", s.calls)
	}
}

func TestRunOnce_FailureIsolatedPerScraper(t *testing.T) {
	broken := &fakeScraper{name: "broken", err: errors.New("boom")}
	healthy := &fakeScraper{name: "healthy", messages: []core.ArticleMessage{
		{URL: "https://example.com/ok"},
	}}
	pub := &fakePublisher{}

	sched := New([]scraper.Scraper{broken, healthy}, pub, nil, testOptions())
	sched.RunOnce(context.Background())

	if pub.count() != 1 {
		t.Errorf("healthy scraper should publish despite broken peer, got %d", pub.count())
	}
}

func TestRunOnce_PublishFailureAllowsRetry(t *testing.T) {
	s := &fakeScraper{name: "feed", messages: []core.ArticleMessage{
		{URL: "https://example.com/a"},
	}}
	pub := &fakePublisher{err: errors.New("redis down")}

	sched := New([]scraper.Scraper{s}, pub, nil, testOptions())
	sched.RunOnce(context.Background())
	if pub.count() != 0 {
		t.Fatalf("expected publish to fail, got %d published", pub.count())
	}

	// Queue recovers; the URL must not be stuck in the seen set.
	pub.err = nil
	sched.RunOnce(context.Background())
	if pub.count() != 1 {
		t.Errorf("URL dropped on publish failure should be retried, got %d", pub.count())
	}
}
