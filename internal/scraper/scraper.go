// Package scraper turns configured news sources into article messages.
// Two scraper kinds cover the corpus: RSS/Atom feeds and HTML listing
// pages driven by CSS selectors.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsradar/internal/core"
)

// userAgent identifies the scraper to upstream sites.
const userAgent = "NewsRadar/1.0"

// maxBodyBytes bounds how much of a response we read.
const maxBodyBytes = 10 << 20

// Scraper fetches the current article listing of one source.
type Scraper interface {
	Name() string
	BaseURL() string
	Fetch(ctx context.Context) ([]core.ArticleMessage, error)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	return body, nil
}

// parseTime normalizes the timestamp formats feeds actually use into
// RFC 3339. Unparseable values come back empty and the ingestion side
// substitutes its own clock.
func parseTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC822Z,
		time.RFC822,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

// resolveURL makes href absolute against the page it appeared on.
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	hrefURL, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(hrefURL).String()
}

// Selectors drives the HTML listing scraper. Item scopes each article
// block; the rest are resolved within it.
type Selectors struct {
	Item    string `json:"item" mapstructure:"item"`
	Title   string `json:"title" mapstructure:"title"`
	Link    string `json:"link" mapstructure:"link"`
	Content string `json:"content,omitempty" mapstructure:"content"`
	Time    string `json:"time,omitempty" mapstructure:"time"`
}

// Config describes one source in the sources file.
type Config struct {
	Name       string    `json:"name" validate:"required"`
	URL        string    `json:"url" validate:"required,url"`
	Type       string    `json:"type" validate:"required,oneof=rss html"`
	Reputation float64   `json:"reputation" validate:"gte=0,lte=1"`
	Selectors  Selectors `json:"selectors,omitempty"`
}

// New builds a scraper from its config entry.
func New(cfg Config) (Scraper, error) {
	switch cfg.Type {
	case "rss":
		return NewRSS(cfg.Name, cfg.URL), nil
	case "html":
		if cfg.Selectors.Item == "" || cfg.Selectors.Link == "" {
			return nil, fmt.Errorf("html source %s requires item and link selectors", cfg.Name)
		}
		return NewHTML(cfg.Name, cfg.URL, cfg.Selectors), nil
	default:
		return nil, fmt.Errorf("unknown scraper type %q for source %s", cfg.Type, cfg.Name)
	}
}

// HTMLScraper extracts articles from a listing page with CSS selectors.
type HTMLScraper struct {
	name      string
	pageURL   string
	selectors Selectors
	client    *http.Client
}

// NewHTML creates an HTML listing scraper.
func NewHTML(name, pageURL string, selectors Selectors) *HTMLScraper {
	return &HTMLScraper{
		name:      name,
		pageURL:   pageURL,
		selectors: selectors,
		client:    defaultClient(),
	}
}

func (h *HTMLScraper) Name() string    { return h.name }
func (h *HTMLScraper) BaseURL() string { return h.pageURL }

// Fetch downloads the listing page and extracts one message per item
// block. Items without a link are skipped.
func (h *HTMLScraper) Fetch(ctx context.Context) ([]core.ArticleMessage, error) {
	body, err := get(ctx, h.client, h.pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page %s: %w", h.pageURL, err)
	}

	var messages []core.ArticleMessage
	doc.Find(h.selectors.Item).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(h.selectors.Link).First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}

		title := strings.TrimSpace(item.Find(h.selectors.Title).First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		msg := core.ArticleMessage{
			SourceName: h.name,
			URL:        resolveURL(h.pageURL, href),
			Title:      title,
		}
		if h.selectors.Content != "" {
			msg.Content = strings.TrimSpace(item.Find(h.selectors.Content).First().Text())
		}
		if h.selectors.Time != "" {
			timeSel := item.Find(h.selectors.Time).First()
			raw, ok := timeSel.Attr("datetime")
			if !ok {
				raw = timeSel.Text()
			}
			msg.PublishedAt = parseTime(raw)
		}
		messages = append(messages, msg)
	})

	return messages, nil
}
