// Package classifier gates ingestion to financially relevant articles.
// It runs a cheap keyword prefilter before the learned label stage.
package classifier

import (
	"context"
	"strings"

	"newsradar/internal/llm"
	"newsradar/internal/logger"
)

// financialKeywords is the prefilter vocabulary. Substring match against
// lowercased text; stems are intentional so inflected forms match too.
var financialKeywords = []string{
	// Russian
	"экономика", "финансы", "банк", "кредит", "инвестиц", "акци",
	"биржа", "валюта", "рубль", "доллар", "евро", "цб", "центробанк",
	"нефть", "газ", "золото", "металл", "сырье", "экспорт", "импорт",
	"инфляция", "ввп", "бюджет", "налог", "тариф", "пошлин",
	"ценные бумаги", "облигаци", "фонд", "дивиденд", "прибыл",
	"убыток", "выручка", "капитализаци", "сделка", "поглощение",
	"слияние", "санкци", "торговля", "бизнес", "компания", "корпораци",
	"производство", "промышленность", "отрасл", "сектор",
	"криптовалюта", "биткоин", "блокчейн", "майнинг", "токен",
	"рынок", "цена", "стоимость", "котировк", "индекс",
	"рост", "падение", "динамика", "тренд", "прогноз",
	"недвижимость", "ипотека", "строительство", "девелопер",

	// English
	"economy", "finance", "bank", "investment", "stock", "market",
	"currency", "dollar", "euro", "bitcoin", "crypto", "trading",
	"merger", "acquisition", "ipo", "fund", "bond", "dividend",
	"earnings", "regulation", "sanctions", "bankruptcy", "default",
}

// acceptedLabels are the learned categories treated as financially
// relevant.
var acceptedLabels = map[string]bool{
	"economy":    true,
	"stock":      true,
	"finance":    true,
	"business":   true,
	"technology": true,
}

// Labeler assigns a single category label with a confidence score.
// *llm.Client satisfies it.
type Labeler interface {
	ClassifyArticle(ctx context.Context, title, excerpt string) (*llm.Classification, error)
}

// Result records how an article passed or failed the gate.
type Result struct {
	Relevant   bool
	Stage      string // "prefilter" or "label"
	Label      string
	Confidence float64
}

// Classifier is the two-stage relevance gate.
type Classifier struct {
	labeler       Labeler
	minConfidence float64
}

// New creates a classifier. labeler may be nil, in which case only the
// prefilter runs and every candidate is accepted.
func New(labeler Labeler, minConfidence float64) *Classifier {
	return &Classifier{labeler: labeler, minConfidence: minConfidence}
}

// Prefilter reports whether the text contains any finance vocabulary.
// Cost is linear in the text length.
func Prefilter(title, content string) bool {
	text := strings.ToLower(title + " " + content)
	for _, keyword := range financialKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// Check runs both stages. A labeler error fails open: the article is
// accepted so nothing is lost silently, and the failure is logged.
func (c *Classifier) Check(ctx context.Context, title, content string) Result {
	if !Prefilter(title, content) {
		return Result{Relevant: false, Stage: "prefilter"}
	}

	if c.labeler == nil {
		return Result{Relevant: true, Stage: "prefilter"}
	}

	cls, err := c.labeler.ClassifyArticle(ctx, title, content)
	if err != nil {
		logger.Warn("Classifier failed, accepting article (fail-open)", "title", truncate(title, 80), "error", err.Error())
		return Result{Relevant: true, Stage: "label"}
	}

	// The learned model is least precise on economy, so that label is
	// always accepted regardless of confidence.
	relevant := cls.Label == "economy" ||
		(acceptedLabels[cls.Label] && cls.Confidence >= c.minConfidence)

	return Result{
		Relevant:   relevant,
		Stage:      "label",
		Label:      cls.Label,
		Confidence: cls.Confidence,
	}
}

// truncate cuts at rune boundaries so Cyrillic titles are not split
// mid-character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
