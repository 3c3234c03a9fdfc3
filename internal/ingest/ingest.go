// Package ingest turns queued article messages into stored, clustered
// articles: classify, embed, assign a cluster through the vector index,
// persist, index.
package ingest

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsradar/internal/annindex"
	"newsradar/internal/classifier"
	"newsradar/internal/core"
	"newsradar/internal/embedding"
	"newsradar/internal/logger"
	"newsradar/internal/metrics"
	"newsradar/internal/persistence"
)

// Status classifies the outcome of processing one message.
type Status string

const (
	StatusIngested   Status = "ingested"
	StatusDuplicate  Status = "duplicate"
	StatusIrrelevant Status = "irrelevant"
)

// Outcome reports what happened to one message.
type Outcome struct {
	Status     Status
	Article    *core.Article
	Similarity float64
	NewCluster bool
}

// Ingestor processes article messages. It is shared by the queue worker
// and the synchronous POST /ingest path.
type Ingestor struct {
	articles  persistence.ArticleRepository
	sources   persistence.SourceRepository
	gate      *classifier.Classifier
	embedder  embedding.Embedder
	index     *annindex.Index
	threshold float64

	snapMu    sync.Mutex // serialises snapshot writes
	snapshots sync.WaitGroup
}

// New creates an Ingestor. threshold is the cosine similarity above which
// an article joins its nearest neighbour's cluster.
func New(articles persistence.ArticleRepository, sources persistence.SourceRepository, gate *classifier.Classifier, embedder embedding.Embedder, index *annindex.Index, threshold float64) *Ingestor {
	return &Ingestor{
		articles:  articles,
		sources:   sources,
		gate:      gate,
		embedder:  embedder,
		index:     index,
		threshold: threshold,
	}
}

// Process runs the full pipeline for one message. A returned error means
// the message should be retried (nack); every non-error outcome is final
// and the message is acked.
//
// The store insert happens before the index add. A crash between the two
// leaves an article without a vector, which Reconcile repairs on the next
// start; the reverse order would leave an unqueryable vector forever.
func (i *Ingestor) Process(ctx context.Context, msg core.ArticleMessage) (*Outcome, error) {
	published := parsePublishedAt(msg.PublishedAt, msg.URL)

	if i.gate != nil {
		check := i.gate.Check(ctx, msg.Title, msg.Content)
		if !check.Relevant {
			metrics.ArticlesIngested.WithLabelValues("irrelevant").Inc()
			logger.Debug("Article rejected as irrelevant",
				"url", msg.URL, "stage", check.Stage, "label", check.Label)
			return &Outcome{Status: StatusIrrelevant}, nil
		}
	}

	source, err := i.sources.GetOrCreate(ctx, msg.SourceName, siteURL(msg.URL))
	if err != nil {
		return nil, err
	}

	vec, err := i.embedder.Embed(ctx, msg.Title+"\n"+msg.Content)
	if err != nil {
		return nil, err
	}
	vec = embedding.Normalize(vec)

	similarity, clusterID, found := i.index.Query(vec)
	newCluster := !found || similarity < i.threshold
	if newCluster {
		clusterID = uuid.NewString()
		metrics.ClustersCreated.Inc()
	}

	article := &core.Article{
		ID:          uuid.NewString(),
		SourceID:    source.ID,
		SourceName:  source.Name,
		URL:         msg.URL,
		Title:       msg.Title,
		Content:     msg.Content,
		PublishedAt: published,
		CreatedAt:   time.Now().UTC(),
		ClusterID:   clusterID,
	}

	if err := i.articles.Insert(ctx, article); err != nil {
		if err == persistence.ErrDuplicateURL {
			// Already stored: no second vector, the message just acks.
			metrics.ArticlesIngested.WithLabelValues("duplicate").Inc()
			return &Outcome{Status: StatusDuplicate}, nil
		}
		return nil, err
	}

	snapshotDue, err := i.index.Add(vec, article.ID, clusterID)
	if err != nil {
		// The article is stored; Reconcile re-adds the vector on restart.
		logger.Error("Failed to add vector to index", err, "article_id", article.ID)
	} else if snapshotDue {
		i.spawnSnapshot()
	}

	metrics.ArticlesIngested.WithLabelValues("ingested").Inc()
	logger.Info("Article ingested",
		"article_id", article.ID, "source", source.Name,
		"cluster_id", clusterID, "new_cluster", newCluster,
		"similarity", similarity)

	return &Outcome{
		Status:     StatusIngested,
		Article:    article,
		Similarity: similarity,
		NewCluster: newCluster,
	}, nil
}

// Reconcile re-embeds and re-adds every stored article missing from the
// index. Runs once on worker start, before consuming.
func (i *Ingestor) Reconcile(ctx context.Context) error {
	count, err := i.articles.Count(ctx)
	if err != nil {
		return err
	}
	if i.index.Len() >= count {
		return nil
	}

	all, err := i.articles.All(ctx)
	if err != nil {
		return err
	}

	repaired := 0
	for _, article := range all {
		if i.index.Contains(article.ID) {
			continue
		}
		vec, err := i.embedder.Embed(ctx, article.Title+"\n"+article.Content)
		if err != nil {
			return err
		}
		if _, err := i.index.Add(embedding.Normalize(vec), article.ID, article.ClusterID); err != nil {
			return err
		}
		repaired++
	}

	if repaired > 0 {
		logger.Info("Index reconciled", "repaired", repaired, "total", count)
		i.spawnSnapshot()
	}
	return nil
}

// spawnSnapshot writes a snapshot in the background. Overlapping snapshots
// serialise on snapMu so their temp-file renames cannot interleave.
func (i *Ingestor) spawnSnapshot() {
	i.snapshots.Add(1)
	go func() {
		defer i.snapshots.Done()
		i.snapshot()
	}()
}

// WaitSnapshots blocks until every background snapshot has finished.
// Called on worker shutdown before the final synchronous snapshot.
func (i *Ingestor) WaitSnapshots() {
	i.snapshots.Wait()
}

func (i *Ingestor) snapshot() {
	i.snapMu.Lock()
	defer i.snapMu.Unlock()
	start := time.Now()
	if err := i.index.Snapshot(); err != nil {
		logger.Error("Index snapshot failed", err)
		return
	}
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
}

// publishSkewTolerance bounds how far in the future a claimed publication
// time may lie before it is treated as clock skew and clamped.
const publishSkewTolerance = 5 * time.Minute

// parsePublishedAt reads the message timestamp, substituting the current
// time when it is missing, unparseable, or implausibly in the future.
func parsePublishedAt(raw, articleURL string) time.Time {
	now := time.Now().UTC()
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			t = t.UTC()
			if t.After(now.Add(publishSkewTolerance)) {
				logger.Warn("Future published_at, clamping to current time", "value", raw, "url", articleURL)
				return now
			}
			return t
		}
		logger.Warn("Unparseable published_at, using current time", "value", raw, "url", articleURL)
	}
	return now
}

// siteURL reduces an article URL to its origin, used as the source URL.
func siteURL(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil || u.Host == "" {
		return articleURL
	}
	return u.Scheme + "://" + u.Host
}
