package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"newsradar/internal/core"
)

// rssFeed is the subset of RSS 2.0 we read.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// atomFeed is the subset of Atom we read.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// RSSScraper reads an RSS 2.0 or Atom feed.
type RSSScraper struct {
	name    string
	feedURL string
	client  *http.Client
}

// NewRSS creates a feed scraper.
func NewRSS(name, feedURL string) *RSSScraper {
	return &RSSScraper{name: name, feedURL: feedURL, client: defaultClient()}
}

func (r *RSSScraper) Name() string    { return r.name }
func (r *RSSScraper) BaseURL() string { return r.feedURL }

// Fetch downloads the feed and converts its items. The body is parsed as
// RSS first and as Atom when that fails.
func (r *RSSScraper) Fetch(ctx context.Context) ([]core.ArticleMessage, error) {
	body, err := get(ctx, r.client, r.feedURL)
	if err != nil {
		return nil, err
	}

	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return r.fromRSS(rss), nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		return r.fromAtom(atom), nil
	}

	return nil, fmt.Errorf("feed %s is neither parseable RSS nor Atom", r.feedURL)
}

func (r *RSSScraper) fromRSS(feed rssFeed) []core.ArticleMessage {
	var messages []core.ArticleMessage
	for _, item := range feed.Channel.Items {
		if item.Link == "" {
			continue
		}
		messages = append(messages, core.ArticleMessage{
			SourceName:  r.name,
			URL:         strings.TrimSpace(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Content:     strings.TrimSpace(item.Description),
			PublishedAt: parseTime(item.PubDate),
		})
	}
	return messages
}

func (r *RSSScraper) fromAtom(feed atomFeed) []core.ArticleMessage {
	var messages []core.ArticleMessage
	for _, entry := range feed.Entries {
		link := atomEntryLink(entry)
		if link == "" {
			continue
		}
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		messages = append(messages, core.ArticleMessage{
			SourceName:  r.name,
			URL:         strings.TrimSpace(link),
			Title:       strings.TrimSpace(entry.Title),
			Content:     strings.TrimSpace(content),
			PublishedAt: parseTime(published),
		})
	}
	return messages
}

// atomEntryLink prefers the alternate link, then the first one present.
func atomEntryLink(entry atomEntry) string {
	for _, link := range entry.Links {
		if link.Rel == "alternate" && link.Href != "" {
			return link.Href
		}
	}
	for _, link := range entry.Links {
		if link.Href != "" {
			return link.Href
		}
	}
	return ""
}
