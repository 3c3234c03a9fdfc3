package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"newsradar/internal/core"
	"newsradar/internal/logger"
)

// LearnedScorer produces a per-article score in [0, 1]. The cluster-level
// learned score is the mean over its articles.
type LearnedScorer interface {
	ScoreArticle(article core.Article) float64
}

// hotKeywords feed the regressor's keyword feature.
var hotKeywords = []string{"важн", "срочн", "кризис", "рост", "паден", "рекорд"}

// regressorWeights is the JSON shape of the model file. The raw output is
// on a 0-100 scale.
type regressorWeights struct {
	Bias          float64 `json:"bias"`
	TitleLength   float64 `json:"title_length"`
	ContentLength float64 `json:"content_length"`
	KeywordHits   float64 `json:"keyword_hits"`
}

// LinearScorer is a linear regressor over cheap text features, weights
// trained offline and shipped as a JSON file.
type LinearScorer struct {
	weights regressorWeights
}

// LoadLinear reads the weights file. A missing file is not an error:
// it returns (nil, nil) and the caller scores clusters with learned = 0.
func LoadLinear(path string) (*LinearScorer, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Learned model file not found, scoring without it", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	var weights regressorWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	return &LinearScorer{weights: weights}, nil
}

// ScoreArticle evaluates the regressor and maps its 0-100 output to [0, 1].
func (l *LinearScorer) ScoreArticle(article core.Article) float64 {
	text := strings.ToLower(article.Title + " " + article.Content)
	hits := 0.0
	for _, keyword := range hotKeywords {
		if strings.Contains(text, keyword) {
			hits++
		}
	}

	raw := l.weights.Bias +
		l.weights.TitleLength*float64(len(article.Title)) +
		l.weights.ContentLength*float64(len(article.Content)) +
		l.weights.KeywordHits*hits

	return clamp01(raw / 100.0)
}

// ClusterLearned is the mean learned score over the cluster's articles,
// 0 when no scorer is configured.
func ClusterLearned(scorer LearnedScorer, articles []core.Article) float64 {
	if scorer == nil || len(articles) == 0 {
		return 0
	}
	total := 0.0
	for _, article := range articles {
		total += scorer.ScoreArticle(article)
	}
	return total / float64(len(articles))
}
