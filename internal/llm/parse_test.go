package llm

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseEnrichment_FullResponse(t *testing.T) {
	raw := `{
		"headline": "Acme to acquire Globex for $2B",
		"why_now": "First confirmation of the deal after weeks of rumours.",
		"entities": ["Acme Corp", "Globex", "US"],
		"timeline": [{"time": "2026-01-10 09:30", "event": "Deal announced"}],
		"draft": "Lead paragraph.\n\n- Point one\n- Point two\n- Point three\n\n\"Quote\" - CEO",
		"telegram_post": "Acme buys Globex."
	}`

	result := parseEnrichment(raw)
	if result.Headline != "Acme to acquire Globex for $2B" {
		t.Errorf("unexpected headline: %q", result.Headline)
	}
	if len(result.Entities) != 3 {
		t.Errorf("expected 3 entities, got %d", len(result.Entities))
	}
	if len(result.Timeline) != 1 || result.Timeline[0].Event != "Deal announced" {
		t.Errorf("unexpected timeline: %+v", result.Timeline)
	}
	if result.TelegramPost != "Acme buys Globex." {
		t.Errorf("unexpected telegram post: %q", result.TelegramPost)
	}
}

func TestParseEnrichment_FencedJSON(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"headline\": \"H\", \"why_now\": \"W\"}\n```"
	result := parseEnrichment(raw)
	if result.Headline != "H" || result.WhyNow != "W" {
		t.Errorf("fenced JSON not unwrapped: %+v", result)
	}
}

func TestParseEnrichment_GarbageYieldsZeroValues(t *testing.T) {
	result := parseEnrichment("not json at all")
	if result.Headline != "" || result.Draft != "" || len(result.Entities) != 0 {
		t.Errorf("expected zero values, got %+v", result)
	}
}

func TestParseEnrichment_MistypedFields(t *testing.T) {
	raw := `{"headline": 42, "entities": "not a list", "timeline": {"oops": true}, "draft": ["x"]}`
	result := parseEnrichment(raw)
	if result.Headline != "" {
		t.Errorf("mis-typed headline should be empty, got %q", result.Headline)
	}
	if result.Entities != nil {
		t.Errorf("mis-typed entities should be nil, got %v", result.Entities)
	}
	if result.Timeline != nil {
		t.Errorf("mis-typed timeline should be nil, got %v", result.Timeline)
	}
	if result.Draft != "" {
		t.Errorf("mis-typed draft should be empty, got %q", result.Draft)
	}
}

func TestParseEnrichment_EntityCap(t *testing.T) {
	entities := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		entities = append(entities, `"E"`)
	}
	raw := `{"entities": [` + strings.Join(entities, ",") + `]}`
	result := parseEnrichment(raw)
	if len(result.Entities) != maxEntities {
		t.Errorf("expected entities capped at %d, got %d", maxEntities, len(result.Entities))
	}
}

func TestParseEnrichment_StructuredDraft(t *testing.T) {
	raw := `{"draft": {"lead": "The lead.", "bullets": ["a", "b"], "quote": "said so"}}`
	result := parseEnrichment(raw)
	if !strings.Contains(result.Draft, "The lead.") {
		t.Errorf("draft missing lead: %q", result.Draft)
	}
	if !strings.Contains(result.Draft, "- a") || !strings.Contains(result.Draft, "- b") {
		t.Errorf("draft missing bullets: %q", result.Draft)
	}
	if !strings.Contains(result.Draft, `"said so"`) {
		t.Errorf("draft missing quote: %q", result.Draft)
	}
}

func TestParseEnrichment_TimelineAlternateKeys(t *testing.T) {
	raw := `{"timeline": [{"timestamp": "2026-01-10 09:30", "description": "Announced"}]}`
	result := parseEnrichment(raw)
	if len(result.Timeline) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(result.Timeline))
	}
	if result.Timeline[0].Time != "2026-01-10 09:30" || result.Timeline[0].Event != "Announced" {
		t.Errorf("alternate keys not coerced: %+v", result.Timeline[0])
	}
}

func TestParseClassification(t *testing.T) {
	cls, err := parseClassification(`{"label": "Economy", "confidence": 0.82}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cls.Label != "economy" {
		t.Errorf("label should be lowercased, got %q", cls.Label)
	}
	if cls.Confidence != 0.82 {
		t.Errorf("unexpected confidence: %v", cls.Confidence)
	}
}

func TestParseClassification_ClampsConfidence(t *testing.T) {
	cls, err := parseClassification(`{"label": "stock", "confidence": 1.7}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cls.Confidence != 1.0 {
		t.Errorf("confidence should clamp to 1, got %v", cls.Confidence)
	}
}

func TestParseClassification_Errors(t *testing.T) {
	if _, err := parseClassification("garbage"); err == nil {
		t.Error("expected error for unparseable response")
	}
	if _, err := parseClassification(`{"confidence": 0.5}`); err == nil {
		t.Error("expected error for missing label")
	}
}

func TestFormatTelegramPost_Truncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	post := FormatTelegramPost(long, "", nil)
	if got := len([]rune(post)); got != 500 {
		t.Errorf("expected 500 chars, got %d", got)
	}
}

func TestFormatTelegramPost_TruncatesCyrillicAtRuneBoundary(t *testing.T) {
	long := strings.Repeat("важн", 200)
	post := FormatTelegramPost(long, "", nil)
	if got := len([]rune(post)); got != 500 {
		t.Errorf("expected 500 chars, got %d", got)
	}
	if !utf8.ValidString(post) {
		t.Error("truncation split a character")
	}
}
