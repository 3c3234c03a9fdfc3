// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScraperRuns counts fetch attempts per source, by outcome.
	ScraperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsradar_scraper_runs_total",
		Help: "Scraper fetch attempts by source and outcome.",
	}, []string{"source", "outcome"})

	// ArticlesPublished counts messages placed on the ingestion stream.
	ArticlesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsradar_articles_published_total",
		Help: "Article messages published to the ingestion stream.",
	})

	// ArticlesIngested counts persisted articles, by relevance outcome.
	ArticlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsradar_articles_ingested_total",
		Help: "Ingestion outcomes (ingested, duplicate, irrelevant, failed).",
	}, []string{"outcome"})

	// ClustersCreated counts newly minted clusters.
	ClustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsradar_clusters_created_total",
		Help: "New clusters minted when no neighbour cleared the threshold.",
	})

	// StoriesEnriched counts story generation outcomes.
	StoriesEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsradar_stories_enriched_total",
		Help: "Story enrichment outcomes (enriched, fallback).",
	}, []string{"outcome"})

	// SnapshotDuration observes index snapshot latency.
	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsradar_index_snapshot_seconds",
		Help:    "Time spent writing index snapshots.",
		Buckets: prometheus.DefBuckets,
	})
)
