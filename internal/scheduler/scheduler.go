// Package scheduler drives the scrapers on a fixed interval and publishes
// newly seen articles to the ingestion stream.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsradar/internal/core"
	"newsradar/internal/logger"
	"newsradar/internal/metrics"
	"newsradar/internal/scraper"
)

// Publisher abstracts the queue side. *queue.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg core.ArticleMessage) error
}

// state is the per-scraper lifecycle.
type state int

const (
	stateIdle state = iota
	stateFetching
	statePublishing
	stateDisabled
)

// scraperEntry tracks one scraper's state and failure streak.
type scraperEntry struct {
	scraper  scraper.Scraper
	state    state
	failures int
}

// Options configures a Scheduler.
type Options struct {
	Interval    time.Duration // Tick period, default 5m
	RunTimeout  time.Duration // Per-run deadline, default 2m
	MaxFailures int           // Consecutive failures before disabling, default 3
}

// Scheduler fans out over the configured scrapers each tick. A scraper
// that fails MaxFailures runs in a row is disabled until restart.
type Scheduler struct {
	entries   []*scraperEntry
	publisher Publisher
	opts      Options

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a scheduler. seenURLs carries the already persisted article
// URLs so restarts do not republish the whole corpus.
func New(scrapers []scraper.Scraper, publisher Publisher, seenURLs []string, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}

	entries := make([]*scraperEntry, 0, len(scrapers))
	for _, s := range scrapers {
		entries = append(entries, &scraperEntry{scraper: s})
	}
	seen := make(map[string]bool, len(seenURLs))
	for _, u := range seenURLs {
		seen[u] = true
	}
	return &Scheduler{entries: entries, publisher: publisher, opts: opts, seen: seen}
}

// Run executes one round immediately, then one per tick until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce fans out over all enabled scrapers under the per-run deadline.
// Failures are isolated per scraper; the round itself never errors.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)
	for _, entry := range s.entries {
		if entry.state == stateDisabled {
			continue
		}
		entry := entry
		g.Go(func() error {
			s.runScraper(gCtx, entry)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runScraper(ctx context.Context, entry *scraperEntry) {
	name := entry.scraper.Name()
	entry.state = stateFetching

	messages, err := entry.scraper.Fetch(ctx)
	if err != nil {
		entry.state = stateIdle
		entry.failures++
		metrics.ScraperRuns.WithLabelValues(name, "error").Inc()
		logger.Warn("Scraper fetch failed", "source", name, "failures", entry.failures, "error", err.Error())
		if entry.failures >= s.opts.MaxFailures {
			entry.state = stateDisabled
			logger.Error("Scraper disabled after repeated failures", nil, "source", name, "failures", entry.failures)
		}
		return
	}
	entry.failures = 0
	metrics.ScraperRuns.WithLabelValues(name, "ok").Inc()

	entry.state = statePublishing
	published := 0
	for _, msg := range messages {
		if msg.URL == "" || !s.markSeen(msg.URL) {
			continue
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			// Dropped, not re-queued: the next fetch that still lists the
			// URL will retry because markSeen is undone here.
			s.unmarkSeen(msg.URL)
			logger.Error("Failed to publish article, dropping", err, "source", name, "url", msg.URL)
			continue
		}
		published++
		metrics.ArticlesPublished.Inc()
	}
	entry.state = stateIdle

	logger.Info("Scraper run complete", "source", name, "listed", len(messages), "published", published)
}

// markSeen records the URL, returning false when it was already known.
func (s *Scheduler) markSeen(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[url] {
		return false
	}
	s.seen[url] = true
	return true
}

func (s *Scheduler) unmarkSeen(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, url)
}
