// Package llm wraps the Gemini API for cluster enrichment and relevance
// classification.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"newsradar/internal/core"
)

const (
	// DefaultModel is the default Gemini model used for enrichment.
	DefaultModel = "gemini-flash-lite-latest"

	// enrichmentPromptTemplate asks for a structured story grounded in the
	// supplied articles. The response must be JSON.
	enrichmentPromptTemplate = `You are a financial news analyst. Analyze the following news cluster and provide structured output.

News Articles:
%s

Generate a JSON response with the following fields:
1. "headline": A concise, impactful headline (max 100 chars)
2. "why_now": 1-2 sentences explaining why this is important NOW (novelty, confirmations, scale of impact)
3. "entities": A list of companies, tickers, countries, or sectors mentioned (max 10 items)
4. "timeline": A list of key timestamps with brief descriptions (format: [{"time": "YYYY-MM-DD HH:MM", "event": "description"}])
5. "draft": A complete draft post as a SINGLE STRING with markdown formatting: a lead paragraph (2-3 sentences), 3 bullet points (use - for bullets), and a relevant quote or reference with attribution
6. "telegram_post": A short variant of the draft suitable for a messaging channel (max 500 chars, headline first, then 2-3 sentences)

Ensure all information is grounded in the provided articles. Respond with valid JSON only, no other text.`

	// classifyPromptTemplate asks for a single-label category with a
	// confidence score.
	classifyPromptTemplate = `You are a news desk classifier. Assign exactly one category to the article below.

Categories: economy, stock, finance, business, technology, politics, society, sport, culture, incident

Title: %s
Text: %s

Respond with valid JSON only: {"label": "<category>", "confidence": <0.0-1.0>}`
)

// EnrichmentResult is the parsed structured response for one cluster.
// Missing or mis-typed fields are replaced with zero values by the parser,
// never surfaced as errors.
type EnrichmentResult struct {
	Headline     string
	WhyNow       string
	Entities     []string
	Timeline     []core.TimelineEvent
	Draft        string
	TelegramPost string
}

// Classification is the learned relevance label for one article.
type Classification struct {
	Label      string
	Confidence float64
}

// Client is a Gemini-backed LLM client. All calls run through a circuit
// breaker so a failing upstream trips fast instead of queueing timeouts.
type Client struct {
	gClient     *genai.Client
	modelName   string
	maxTokens   int32
	temperature float32
	breaker     *gobreaker.CircuitBreaker
}

// NewClient creates a new LLM client.
func NewClient(ctx context.Context, apiKey, modelName string, maxTokens int32, temperature float32) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or gemini.api_key in the config file")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		gClient:     gClient,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		breaker:     breaker,
	}, nil
}

// generateContent runs one generation call through the circuit breaker.
func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		contents := []*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
			Role:  "user",
		}}

		temp := c.temperature
		config := &genai.GenerateContentConfig{
			MaxOutputTokens: c.maxTokens,
			Temperature:     &temp,
		}

		resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty response from model")
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// EnrichCluster synthesises a structured story from the cluster's articles.
// At most maxArticles articles are included, each truncated to excerptChars
// characters, so the prompt stays bounded and every claim remains traceable
// to the excerpts.
func (c *Client) EnrichCluster(ctx context.Context, articles []core.Article, maxArticles, excerptChars int) (*EnrichmentResult, error) {
	if len(articles) == 0 {
		return nil, fmt.Errorf("cannot enrich an empty cluster")
	}
	if maxArticles <= 0 {
		maxArticles = 5
	}
	if excerptChars <= 0 {
		excerptChars = 1000
	}
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}

	var sb strings.Builder
	for i, article := range articles {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		content := truncateRunes(article.Content, excerptChars)
		fmt.Fprintf(&sb, "Title: %s\nSource: %s\nPublished: %s\nURL: %s\nContent: %s",
			article.Title, article.SourceName,
			article.PublishedAt.UTC().Format(time.RFC3339), article.URL, content)
	}

	prompt := fmt.Sprintf(enrichmentPromptTemplate, sb.String())
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseEnrichment(raw), nil
}

// ClassifyArticle assigns a single category label with a confidence score.
func (c *Client) ClassifyArticle(ctx context.Context, title, excerpt string) (*Classification, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, title, truncateRunes(excerpt, 500))

	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseClassification(raw)
}
