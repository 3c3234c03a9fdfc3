// Package scoring computes cluster hotness: a deterministic heuristic over
// the cluster's articles, optionally blended with a learned per-article
// regressor at ranking time.
package scoring

import (
	"sort"
	"strings"
	"time"

	"newsradar/internal/core"
)

// Component weights of the heuristic. They sum to 1.
const (
	weightMateriality    = 0.25
	weightVelocity       = 0.25
	weightBreadth        = 0.20
	weightCredibility    = 0.20
	weightUnexpectedness = 0.10
)

// Saturation points of the sub-scores.
const (
	materialityKeywordCap = 3.0    // keywords per article for full materiality
	velocityDivisor       = 2.0    // articles/hour for full velocity
	velocitySpanFloorH    = 0.1    // minimum span, hours
	velocitySingleScore   = 0.3    // baseline for a one-article cluster
	breadthSourceCap      = 5.0    // unique sources for full breadth
	unexpectednessCharCap = 2000.0 // mean body length for full unexpectedness
	defaultCredibility    = 0.5
)

// highImpactKeywords drive the materiality sub-score. Substring match
// against lowercased title+content; RU stems cover inflected forms.
var highImpactKeywords = []string{
	"merger", "acquisition", "bankruptcy", "guidance", "regulation",
	"lawsuit", "fraud", "investigation", "earnings", "restructuring",
	"default", "dividend", "buyback", "ipo", "delisting",
	"слияние", "поглощение", "банкротство", "регулирование",
	"иск", "мошенничество", "расследование", "прибыль",
}

// Hotness scores one cluster. reputations carries the per-article source
// reputation, aligned with articles; a missing entry counts as 0.5. The
// returned breakdown has Heuristic filled and Learned/Final zeroed; the
// caller blends them.
func Hotness(articles []core.Article, reputations []float64) core.ScoreBreakdown {
	if len(articles) == 0 {
		return core.ScoreBreakdown{}
	}

	breakdown := core.ScoreBreakdown{
		Materiality:    materiality(articles),
		Velocity:       velocity(articles),
		Breadth:        breadth(articles),
		Credibility:    credibility(reputations),
		Unexpectedness: unexpectedness(articles),
	}
	breakdown.Heuristic = clamp01(weightMateriality*breakdown.Materiality +
		weightVelocity*breakdown.Velocity +
		weightBreadth*breakdown.Breadth +
		weightCredibility*breakdown.Credibility +
		weightUnexpectedness*breakdown.Unexpectedness)
	return breakdown
}

// Blend combines the heuristic with the learned score and fills Final.
func Blend(breakdown core.ScoreBreakdown, learned, heuristicWeight, learnedWeight float64) core.ScoreBreakdown {
	breakdown.Learned = clamp01(learned)
	breakdown.Final = clamp01(heuristicWeight*breakdown.Heuristic + learnedWeight*breakdown.Learned)
	return breakdown
}

// materiality is the mean per-article keyword density, each article
// saturating at three keyword hits.
func materiality(articles []core.Article) float64 {
	total := 0.0
	for _, article := range articles {
		text := strings.ToLower(article.Title + " " + article.Content)
		hits := 0
		for _, keyword := range highImpactKeywords {
			if strings.Contains(text, keyword) {
				hits++
			}
		}
		total += min1(float64(hits) / materialityKeywordCap)
	}
	return min1(total / float64(len(articles)))
}

// velocity is articles per hour over the cluster's publication span,
// saturating at two per hour. The span floor stops near-simultaneous
// posts from producing absurd rates.
func velocity(articles []core.Article) float64 {
	if len(articles) <= 1 {
		return velocitySingleScore
	}

	times := make([]time.Time, 0, len(articles))
	for _, article := range articles {
		times = append(times, article.PublishedAt)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	spanHours := times[len(times)-1].Sub(times[0]).Hours()
	if spanHours < velocitySpanFloorH {
		spanHours = velocitySpanFloorH
	}
	return min1(float64(len(articles)) / spanHours / velocityDivisor)
}

// breadth counts distinct sources, saturating at five.
func breadth(articles []core.Article) float64 {
	sources := make(map[int64]bool)
	for _, article := range articles {
		sources[article.SourceID] = true
	}
	return min1(float64(len(sources)) / breadthSourceCap)
}

// credibility is the mean source reputation, defaulting to 0.5 when no
// reputations are known.
func credibility(reputations []float64) float64 {
	if len(reputations) == 0 {
		return defaultCredibility
	}
	total := 0.0
	for _, r := range reputations {
		total += r
	}
	return total / float64(len(reputations))
}

// unexpectedness proxies on mean body length until a historical baseline
// exists, saturating at 2000 characters.
func unexpectedness(articles []core.Article) float64 {
	total := 0.0
	for _, article := range articles {
		total += float64(len(article.Content))
	}
	return min1(total / float64(len(articles)) / unexpectednessCharCap)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	return min1(v)
}
