package classifier

import (
	"context"
	"errors"
	"testing"

	"newsradar/internal/llm"
)

type fakeLabeler struct {
	cls *llm.Classification
	err error
}

func (f *fakeLabeler) ClassifyArticle(ctx context.Context, title, excerpt string) (*llm.Classification, error) {
	return f.cls, f.err
}

func TestPrefilter(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    bool
	}{
		{"english finance term", "Big merger announced", "Acme and Globex join", true},
		{"russian finance term", "Центробанк поднял ставку", "", true},
		{"keyword in body only", "Quiet day", "the stock market closed flat", true},
		{"no finance terms", "Local festival draws crowds", "music and food downtown", false},
		{"case insensitive", "MERGER TALKS CONTINUE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prefilter(tt.title, tt.content); got != tt.want {
				t.Errorf("Prefilter(%q, %q) = %v, want %v", tt.title, tt.content, got, tt.want)
			}
		})
	}
}

func TestCheck_PrefilterRejects(t *testing.T) {
	c := New(&fakeLabeler{cls: &llm.Classification{Label: "economy", Confidence: 1}}, 0.5)

	result := c.Check(context.Background(), "Sports roundup", "the home team won again")
	if result.Relevant {
		t.Error("expected prefilter rejection")
	}
	if result.Stage != "prefilter" {
		t.Errorf("expected stage prefilter, got %q", result.Stage)
	}
}

func TestCheck_LabelPolicy(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		confidence float64
		want       bool
	}{
		{"economy always accepted", "economy", 0.1, true},
		{"finance above threshold", "finance", 0.6, true},
		{"finance below threshold", "finance", 0.4, false},
		{"stock at threshold", "stock", 0.5, true},
		{"technology accepted", "technology", 0.9, true},
		{"sport rejected", "sport", 0.99, false},
		{"politics rejected", "politics", 0.8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeLabeler{cls: &llm.Classification{Label: tt.label, Confidence: tt.confidence}}, 0.5)
			result := c.Check(context.Background(), "Central bank raises rates", "markets react")
			if result.Relevant != tt.want {
				t.Errorf("label=%s conf=%v: relevant=%v, want %v", tt.label, tt.confidence, result.Relevant, tt.want)
			}
		})
	}
}

func TestCheck_FailOpen(t *testing.T) {
	c := New(&fakeLabeler{err: errors.New("model unavailable")}, 0.5)

	result := c.Check(context.Background(), "Bank earnings beat estimates", "strong quarter")
	if !result.Relevant {
		t.Error("classifier errors must fail open")
	}
}

func TestCheck_NilLabelerAcceptsCandidates(t *testing.T) {
	c := New(nil, 0.5)

	result := c.Check(context.Background(), "Merger news", "")
	if !result.Relevant {
		t.Error("candidate should be accepted when no labeler is configured")
	}
}
