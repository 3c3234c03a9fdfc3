package scoring

import (
	"math"
	"strings"
	"testing"
	"time"

	"newsradar/internal/core"
)

func articleAt(source int64, title, content string, published time.Time) core.Article {
	return core.Article{
		SourceID:    source,
		Title:       title,
		Content:     content,
		PublishedAt: published,
	}
}

func TestHotness_EmptyCluster(t *testing.T) {
	breakdown := Hotness(nil, nil)
	if breakdown.Heuristic != 0 {
		t.Errorf("empty cluster should score 0, got %v", breakdown.Heuristic)
	}
}

// Three sources, reputations {0.9, 0.85, 0.75}, published within 30
// minutes, one "merger" mention each, ~1500-char bodies. The weighted sum
// works out to 0.25·(1/3) + 0.25·1.0 + 0.20·0.6 + 0.20·0.8333 + 0.10·0.75
// ≈ 0.695.
func TestHotness_KnownVector(t *testing.T) {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	body := strings.Repeat("x", 1493) + " merger"
	articles := []core.Article{
		articleAt(1, "Deal talk", body, base),
		articleAt(2, "Deal talk", body, base.Add(15*time.Minute)),
		articleAt(3, "Deal talk", body, base.Add(30*time.Minute)),
	}
	reputations := []float64{0.9, 0.85, 0.75}

	breakdown := Hotness(articles, reputations)

	if math.Abs(breakdown.Heuristic-0.695) > 0.02 {
		t.Errorf("expected heuristic ≈ 0.695, got %v (breakdown %+v)", breakdown.Heuristic, breakdown)
	}
	if math.Abs(breakdown.Materiality-1.0/3.0) > 1e-9 {
		t.Errorf("materiality: got %v, want 1/3", breakdown.Materiality)
	}
	if breakdown.Velocity != 1.0 {
		t.Errorf("velocity: got %v, want 1.0 (3 articles in 0.5h saturates)", breakdown.Velocity)
	}
	if breakdown.Breadth != 3.0/5.0 {
		t.Errorf("breadth: got %v, want 0.6", breakdown.Breadth)
	}
	wantCred := (0.9 + 0.85 + 0.75) / 3
	if math.Abs(breakdown.Credibility-wantCred) > 1e-9 {
		t.Errorf("credibility: got %v, want %v", breakdown.Credibility, wantCred)
	}
	if math.Abs(breakdown.Unexpectedness-0.75) > 1e-9 {
		t.Errorf("unexpectedness: got %v, want 0.75", breakdown.Unexpectedness)
	}
}

func TestHotness_SingleArticleVelocityBaseline(t *testing.T) {
	articles := []core.Article{articleAt(1, "Quiet", "", time.Now())}
	breakdown := Hotness(articles, nil)
	if breakdown.Velocity != 0.3 {
		t.Errorf("single-article velocity should be the 0.3 baseline, got %v", breakdown.Velocity)
	}
}

func TestHotness_SpanFloor(t *testing.T) {
	// Two posts one second apart: without the floor velocity would explode,
	// with it 2 articles / 0.1h / 2 saturates to 1.
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	articles := []core.Article{
		articleAt(1, "a", "", base),
		articleAt(2, "b", "", base.Add(time.Second)),
	}
	breakdown := Hotness(articles, nil)
	if breakdown.Velocity != 1.0 {
		t.Errorf("near-simultaneous posts should saturate velocity, got %v", breakdown.Velocity)
	}
}

func TestHotness_SlowClusterVelocity(t *testing.T) {
	// Two articles 4 hours apart: 2/4/2 = 0.25.
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	articles := []core.Article{
		articleAt(1, "a", "", base),
		articleAt(2, "b", "", base.Add(4*time.Hour)),
	}
	breakdown := Hotness(articles, nil)
	if math.Abs(breakdown.Velocity-0.25) > 1e-9 {
		t.Errorf("velocity: got %v, want 0.25", breakdown.Velocity)
	}
}

func TestHotness_NoReputationsDefaultsCredibility(t *testing.T) {
	articles := []core.Article{articleAt(1, "a", "", time.Now())}
	breakdown := Hotness(articles, nil)
	if breakdown.Credibility != 0.5 {
		t.Errorf("missing reputations should default to 0.5, got %v", breakdown.Credibility)
	}
}

func TestHotness_MaterialitySaturates(t *testing.T) {
	// Four distinct keywords in one article saturates at 1.0.
	articles := []core.Article{
		articleAt(1, "merger acquisition", "bankruptcy fraud", time.Now()),
	}
	breakdown := Hotness(articles, nil)
	if breakdown.Materiality != 1.0 {
		t.Errorf("materiality should saturate, got %v", breakdown.Materiality)
	}
}

func TestHotness_RussianKeywords(t *testing.T) {
	articles := []core.Article{
		articleAt(1, "Банкротство девелопера", "Суд начал расследование, подан иск", time.Now()),
	}
	breakdown := Hotness(articles, nil)
	if breakdown.Materiality != 1.0 {
		t.Errorf("three RU keywords should saturate materiality, got %v", breakdown.Materiality)
	}
}

func TestHotness_Determinism(t *testing.T) {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	articles := []core.Article{
		articleAt(1, "merger", strings.Repeat("a", 500), base),
		articleAt(2, "earnings", strings.Repeat("b", 800), base.Add(time.Hour)),
	}
	reputations := []float64{0.7, 0.8}

	first := Hotness(articles, reputations)
	for i := 0; i < 10; i++ {
		if got := Hotness(articles, reputations); got != first {
			t.Fatalf("scoring is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestBlend(t *testing.T) {
	breakdown := core.ScoreBreakdown{Heuristic: 0.6}
	blended := Blend(breakdown, 0.8, 0.7, 0.3)

	want := 0.7*0.6 + 0.3*0.8
	if math.Abs(blended.Final-want) > 1e-9 {
		t.Errorf("final: got %v, want %v", blended.Final, want)
	}
	if blended.Learned != 0.8 {
		t.Errorf("learned not recorded: %v", blended.Learned)
	}
}

func TestBlend_ClampsOutOfRange(t *testing.T) {
	blended := Blend(core.ScoreBreakdown{Heuristic: 1.0}, 1.5, 0.7, 0.5)
	if blended.Final > 1.0 {
		t.Errorf("final must be clamped to 1, got %v", blended.Final)
	}
	if blended.Learned != 1.0 {
		t.Errorf("learned must be clamped to 1, got %v", blended.Learned)
	}
}
