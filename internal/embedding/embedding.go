// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize returns v scaled to unit length. Zero vectors are returned as is.
func Normalize(v Vector) Vector {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Options selects and configures an embedding provider.
type Options struct {
	Provider  string // "openai" | "ollama" | "hash" | "" (disabled)
	Model     string
	BaseURL   string
	APIKey    string
	Dims      int
	CacheSize int // cached vectors; 0 disables caching
}

// New creates an embedder from opts. It returns (nil, nil) when no provider
// is configured, which callers treat as "vector search unavailable".
func New(opts Options) (Embedder, error) {
	var e Embedder
	switch strings.ToLower(opts.Provider) {
	case "", "none":
		return nil, nil
	case "hash":
		e = NewHashEmbedder(opts.Dims)
	case "openai":
		e = NewOpenAIEmbedder(opts.BaseURL, opts.APIKey, opts.Model, opts.Dims)
	case "ollama":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		model := opts.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		dims := opts.Dims
		if dims == 0 {
			dims = 768 // nomic-embed-text
		}
		e = NewOpenAIEmbedder(baseURL, "ollama", model, dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: openai, ollama, hash, none)", opts.Provider)
	}

	if opts.CacheSize > 0 {
		cached, err := NewCached(e, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return e, nil
}
