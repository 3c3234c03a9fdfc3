package core

import "time"

// Source represents a registered news source with an editorial reputation.
type Source struct {
	ID         int64     `json:"id"`               // Numeric identifier assigned by the metadata store
	Name       string    `json:"name"`             // Display name, unique across sources
	URL        string    `json:"url"`              // Base URL of the source
	Reputation float64   `json:"reputation_score"` // Credibility weight in [0,1], default 0.5
	CreatedAt  time.Time `json:"created_at"`       // When the source was first registered
}

// Article represents a single ingested news article.
type Article struct {
	ID          string    `json:"id"`                  // UUID minted at ingestion
	SourceID    int64     `json:"source_id"`           // Owning source in the metadata store
	SourceName  string    `json:"source_name"`         // Denormalized source name for scoring and display
	URL         string    `json:"url"`                 // Canonical URL, globally unique across the store
	Title       string    `json:"title"`               // Headline
	Content     string    `json:"content"`             // Body text
	PublishedAt time.Time `json:"published_at"`        // Publication timestamp, timezone-aware
	CreatedAt   time.Time `json:"created_at"`          // Ingestion timestamp
	ClusterID   string    `json:"cluster_id"`          // Dedup cluster, assigned once and never changed
	Companies   []string  `json:"companies,omitempty"` // Optional extracted company names
	People      []string  `json:"people,omitempty"`    // Optional extracted person names
}

// ArticleMessage is the queue payload emitted by the scheduler and consumed
// by the ingestion worker. One message per article.
type ArticleMessage struct {
	SourceName  string `json:"source_name"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"` // ISO 8601, Z or numeric offset
}

// ScoreBreakdown holds the five heuristic sub-scores, the learned score and
// the blended final score for a cluster. Every value is in [0,1].
type ScoreBreakdown struct {
	Materiality    float64 `json:"materiality"`
	Velocity       float64 `json:"velocity"`
	Breadth        float64 `json:"breadth"`
	Credibility    float64 `json:"credibility"`
	Unexpectedness float64 `json:"unexpectedness"`
	Heuristic      float64 `json:"heuristic"` // Weighted blend of the five sub-scores
	Learned        float64 `json:"learned"`   // Mean per-article regressor output, 0 when absent
	Final          float64 `json:"final"`     // heuristic*wH + learned*wL, clipped to [0,1]
}

// SourceRef is a citation attached to a Story.
type SourceRef struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at,omitempty"`
}

// TimelineEvent is a single entry in a Story timeline.
type TimelineEvent struct {
	Time  string `json:"time"`  // "YYYY-MM-DD HH:MM"
	Event string `json:"event"` // Short description
}

// Story is the enrichment artefact produced for a ranked cluster. It is not
// persisted; it exists only in responses.
type Story struct {
	ClusterID    string          `json:"cluster_id"`
	Hotness      float64         `json:"hotness"`
	Scores       ScoreBreakdown  `json:"scores"`
	Headline     string          `json:"headline"`
	WhyNow       string          `json:"why_now"` // 1-2 sentence grounded rationale
	Entities     []string        `json:"entities"`
	Sources      []SourceRef     `json:"sources"` // Up to five citations
	Timeline     []TimelineEvent `json:"timeline"`
	Draft        string          `json:"draft"`         // Markdown draft post
	TelegramPost string          `json:"telegram_post"` // Short formatted variant
	ArticleCount int             `json:"article_count"`
	Fallback     bool            `json:"fallback"` // True when the LLM path failed and defaults were used
}
