package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"newsradar/internal/core"
)

// maxEntities caps the entity list in an enrichment result.
const maxEntities = 10

// parseEnrichment turns a raw model response into an EnrichmentResult.
// The parser is tolerant: fenced JSON is unwrapped, unknown shapes are
// coerced where possible, and anything unusable becomes a zero value.
func parseEnrichment(raw string) *EnrichmentResult {
	result := &EnrichmentResult{}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil {
		return result
	}

	result.Headline = asString(fields["headline"])
	result.WhyNow = asString(fields["why_now"])
	result.Entities = asStringList(fields["entities"], maxEntities)
	result.Timeline = asTimeline(fields["timeline"])
	result.Draft = asDraft(fields["draft"])
	result.TelegramPost = asString(fields["telegram_post"])

	return result
}

// parseClassification parses {"label": ..., "confidence": ...}. Unlike
// enrichment, a response we cannot parse is an error: the caller's
// fail-open policy decides what to do with it.
func parseClassification(raw string) (*Classification, error) {
	var fields struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil {
		return nil, fmt.Errorf("unparseable classification response: %w", err)
	}
	if fields.Label == "" {
		return nil, fmt.Errorf("classification response missing label")
	}
	if fields.Confidence < 0 {
		fields.Confidence = 0
	}
	if fields.Confidence > 1 {
		fields.Confidence = 1
	}
	return &Classification{
		Label:      strings.ToLower(fields.Label),
		Confidence: fields.Confidence,
	}, nil
}

// stripFences removes a markdown code fence around a JSON payload.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		trimmed = trimmed[idx+len("```json"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}
	return strings.TrimSpace(trimmed)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringList(v interface{}, limit int) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// asTimeline accepts entries keyed either {time, event} or
// {timestamp, description}; models use both.
func asTimeline(v interface{}) []core.TimelineEvent {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []core.TimelineEvent
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		event := core.TimelineEvent{
			Time:  asString(entry["time"]),
			Event: asString(entry["event"]),
		}
		if event.Time == "" {
			event.Time = asString(entry["timestamp"])
		}
		if event.Event == "" {
			event.Event = asString(entry["description"])
		}
		if event.Time == "" && event.Event == "" {
			continue
		}
		out = append(out, event)
	}
	return out
}

// asDraft accepts either a plain string or the structured form
// {lead, bullets, quote} some models return despite the prompt.
func asDraft(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	structured, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}

	var sb strings.Builder
	if lead := asString(structured["lead"]); lead != "" {
		sb.WriteString(lead)
		sb.WriteString("\n\n")
	}
	for _, bullet := range asStringList(structured["bullets"], 0) {
		sb.WriteString("- ")
		sb.WriteString(bullet)
		sb.WriteString("\n")
	}
	if quote := asString(structured["quote"]); quote != "" {
		fmt.Fprintf(&sb, "\n%q", quote)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTelegramPost builds the short messaging variant when the model did
// not provide one.
func FormatTelegramPost(headline, whyNow string, sources []core.SourceRef) string {
	var sb strings.Builder
	sb.WriteString("⚡ ")
	sb.WriteString(headline)
	if whyNow != "" {
		sb.WriteString("\n\n")
		sb.WriteString(whyNow)
	}
	if len(sources) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(sources[0].URL)
	}
	return truncateRunes(sb.String(), 500)
}

// truncateRunes cuts at rune boundaries; the corpus is largely Cyrillic,
// where a byte slice would split characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
