// Package analysis ranks recent clusters by hotness and enriches the top
// ones into Story artifacts.
package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsradar/internal/core"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
	"newsradar/internal/metrics"
	"newsradar/internal/persistence"
	"newsradar/internal/scoring"
)

// fallbackWhyNow is the why_now of a Story built without the model.
const fallbackWhyNow = "Analysis unavailable"

// fallbackHeadlineChars truncates the substitute headline.
const fallbackHeadlineChars = 100

// Enricher abstracts the model call. *llm.Client satisfies it.
type Enricher interface {
	EnrichCluster(ctx context.Context, articles []core.Article, maxArticles, excerptChars int) (*llm.EnrichmentResult, error)
}

// Options configures an Analyzer.
type Options struct {
	DefaultTopK      int     // K when the request leaves it unset, default 5
	Concurrency      int     // Parallel enrichment calls, default 4
	MaxArticles      int     // Articles quoted per prompt, default 5
	ExcerptChars     int     // Excerpt budget per quoted article, default 1000
	HeuristicWeight  float64 // Blend weight of the heuristic, default 0.7
	LearnedWeight    float64 // Blend weight of the learned score, default 0.3
	HotnessThreshold float64 // Hot gate for the single-article path, default 0.7
}

// Result is one analysis run: ranked stories plus run totals.
type Result struct {
	Stories       []core.Story `json:"stories"`
	TotalClusters int          `json:"total_clusters"`
	TotalArticles int          `json:"total_articles_analyzed"`
}

// Analyzer runs the ranking and enrichment job.
type Analyzer struct {
	articles persistence.ArticleRepository
	sources  persistence.SourceRepository
	enricher Enricher
	learned  scoring.LearnedScorer
	opts     Options
}

// New creates an Analyzer. enricher and learned may be nil; every story is
// then a fallback and the learned component scores 0.
func New(articles persistence.ArticleRepository, sources persistence.SourceRepository, enricher Enricher, learned scoring.LearnedScorer, opts Options) *Analyzer {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = 5
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = 1000
	}
	if opts.HeuristicWeight <= 0 && opts.LearnedWeight <= 0 {
		opts.HeuristicWeight = 0.7
		opts.LearnedWeight = 0.3
	}
	if opts.HotnessThreshold <= 0 {
		opts.HotnessThreshold = 0.7
	}
	return &Analyzer{articles: articles, sources: sources, enricher: enricher, learned: learned, opts: opts}
}

// HotnessThreshold exposes the hot gate for the ingestion path.
func (a *Analyzer) HotnessThreshold() float64 { return a.opts.HotnessThreshold }

// scoredCluster pairs a cluster with its articles and score.
type scoredCluster struct {
	id        string
	articles  []core.Article
	breakdown core.ScoreBreakdown
}

// Analyse ranks the clusters of the last windowHours and enriches the top
// K. The ranking itself never fails on model errors: failed enrichments
// become fallback stories.
func (a *Analyzer) Analyse(ctx context.Context, windowHours, topK int) (*Result, error) {
	if topK <= 0 {
		topK = a.opts.DefaultTopK
	}

	recent, err := a.articles.Recent(ctx, time.Duration(windowHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	reputations, err := a.reputationsBySource(ctx)
	if err != nil {
		return nil, err
	}

	byCluster := make(map[string][]core.Article)
	for _, article := range recent {
		if article.ClusterID == "" {
			continue
		}
		byCluster[article.ClusterID] = append(byCluster[article.ClusterID], article)
	}

	clusters := make([]scoredCluster, 0, len(byCluster))
	analyzed := 0
	for id, articles := range byCluster {
		clusters = append(clusters, scoredCluster{
			id:        id,
			articles:  articles,
			breakdown: a.scoreCluster(articles, reputations),
		})
		analyzed += len(articles)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].breakdown.Final != clusters[j].breakdown.Final {
			return clusters[i].breakdown.Final > clusters[j].breakdown.Final
		}
		return clusters[i].id < clusters[j].id
	})
	if topK < len(clusters) {
		clusters = clusters[:topK]
	}

	stories := make([]core.Story, len(clusters))
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, cluster := range clusters {
		i, cluster := i, cluster
		g.Go(func() error {
			story := a.BuildStory(gCtx, cluster.id, cluster.articles, cluster.breakdown)
			mu.Lock()
			stories[i] = story
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Analysis run complete",
		"window_hours", windowHours, "clusters", len(byCluster),
		"selected", len(stories), "articles", analyzed)

	return &Result{
		Stories:       stories,
		TotalClusters: len(byCluster),
		TotalArticles: analyzed,
	}, nil
}

// ScoreCluster loads and scores one cluster, for the synchronous
// ingestion path.
func (a *Analyzer) ScoreCluster(ctx context.Context, clusterID string) (core.ScoreBreakdown, []core.Article, error) {
	articles, err := a.articles.ByCluster(ctx, clusterID)
	if err != nil {
		return core.ScoreBreakdown{}, nil, err
	}
	reputations, err := a.reputationsBySource(ctx)
	if err != nil {
		return core.ScoreBreakdown{}, nil, err
	}
	return a.scoreCluster(articles, reputations), articles, nil
}

func (a *Analyzer) scoreCluster(articles []core.Article, reputations map[int64]float64) core.ScoreBreakdown {
	perArticle := make([]float64, 0, len(articles))
	for _, article := range articles {
		if r, ok := reputations[article.SourceID]; ok {
			perArticle = append(perArticle, r)
		} else {
			perArticle = append(perArticle, 0.5)
		}
	}
	breakdown := scoring.Hotness(articles, perArticle)
	learned := scoring.ClusterLearned(a.learned, articles)
	return scoring.Blend(breakdown, learned, a.opts.HeuristicWeight, a.opts.LearnedWeight)
}

// BuildStory enriches one cluster, degrading to a fallback story on any
// model failure. It never returns an error: a story always comes back.
func (a *Analyzer) BuildStory(ctx context.Context, clusterID string, articles []core.Article, breakdown core.ScoreBreakdown) core.Story {
	story := core.Story{
		ClusterID:    clusterID,
		Hotness:      breakdown.Final,
		Scores:       breakdown,
		Sources:      sourceRefs(articles),
		ArticleCount: len(articles),
	}

	if a.enricher == nil {
		return a.applyFallback(story, articles)
	}

	result, err := a.enricher.EnrichCluster(ctx, articles, a.opts.MaxArticles, a.opts.ExcerptChars)
	if err != nil || result == nil || result.Headline == "" {
		if err != nil {
			logger.Warn("Enrichment failed, emitting fallback story", "cluster_id", clusterID, "error", err.Error())
		}
		return a.applyFallback(story, articles)
	}

	story.Headline = result.Headline
	story.WhyNow = result.WhyNow
	story.Entities = result.Entities
	story.Timeline = result.Timeline
	story.Draft = result.Draft
	story.TelegramPost = result.TelegramPost
	if story.TelegramPost == "" {
		story.TelegramPost = llm.FormatTelegramPost(story.Headline, story.WhyNow, story.Sources)
	}
	metrics.StoriesEnriched.WithLabelValues("enriched").Inc()
	return story
}

func (a *Analyzer) applyFallback(story core.Story, articles []core.Article) core.Story {
	if len(articles) > 0 {
		story.Headline = truncate(articles[0].Title, fallbackHeadlineChars)
	}
	story.WhyNow = fallbackWhyNow
	story.Draft = ""
	story.Fallback = true
	story.TelegramPost = llm.FormatTelegramPost(story.Headline, story.WhyNow, story.Sources)
	metrics.StoriesEnriched.WithLabelValues("fallback").Inc()
	return story
}

func (a *Analyzer) reputationsBySource(ctx context.Context) (map[int64]float64, error) {
	sources, err := a.sources.All(ctx)
	if err != nil {
		return nil, err
	}
	reputations := make(map[int64]float64, len(sources))
	for _, source := range sources {
		reputations[source.ID] = source.Reputation
	}
	return reputations, nil
}

// maxSourceRefs caps the citations attached to a Story.
const maxSourceRefs = 5

// sourceRefs cites each distinct source once, first-seen order, at most
// maxSourceRefs entries.
func sourceRefs(articles []core.Article) []core.SourceRef {
	seen := make(map[string]bool)
	var refs []core.SourceRef
	for _, article := range articles {
		key := article.SourceName
		if key == "" {
			key = article.URL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, core.SourceRef{
			URL:         article.URL,
			Title:       article.Title,
			PublishedAt: article.PublishedAt.UTC().Format(time.RFC3339),
		})
		if len(refs) == maxSourceRefs {
			break
		}
	}
	return refs
}

// truncate cuts at rune boundaries; titles are frequently Cyrillic.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
