// Package embedding turns article text into unit vectors for the ANN index.
package embedding

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"
)

// maxEmbeddingChars bounds the text sent to the embedding model.
const maxEmbeddingChars = 8000

// Embedder produces a deterministic unit-normalised vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// GeminiEmbedder implements Embedder against the Gemini embeddings API.
// Calls are bounded by a CPU-count semaphore so a slow or blocking model
// cannot starve the rest of the process.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
	sem    *semaphore.Weighted
}

// NewGeminiEmbedder creates an embedder using the given model, emitting
// vectors of the given dimension (Matryoshka truncation).
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required for embeddings")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEmbedder{
		client: client,
		model:  model,
		dim:    dim,
		sem:    semaphore.NewWeighted(int64(runtime.NumCPU())),
	}, nil
}

func (e *GeminiEmbedder) Dim() int { return e.dim }

// Embed returns the unit-normalised embedding of text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbeddingChars {
		text = text[:maxEmbeddingChars]
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := int32(e.dim)
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	if len(values) != e.dim {
		return nil, fmt.Errorf("unexpected embedding dimension: expected %d, got %d", e.dim, len(values))
	}

	return Normalize(values), nil
}

// Normalize scales a vector to unit length. A zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
