package embedding

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize(Vector{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize = %v, want [0.6 0.8]", v)
	}
	zero := Normalize(Vector{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestNew_Disabled(t *testing.T) {
	e, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e != nil {
		t.Error("expected nil embedder when no provider configured")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Options{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(64)
	if h.Dims() != 64 {
		t.Fatalf("expected 64 dims, got %d", h.Dims())
	}

	a, _ := h.Embed(ctx, "excited about the trip")
	b, _ := h.Embed(ctx, "Excited about the trip!")
	c, _ := h.Embed(ctx, "quarterly tax filing")

	if len(a) != 64 {
		t.Fatalf("expected vector of 64, got %d", len(a))
	}
	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Errorf("case/punctuation variants should match, got %f", sim)
	}
	if CosineSimilarity(a, c) >= CosineSimilarity(a, b) {
		t.Error("unrelated text should be less similar than a variant")
	}

	empty, _ := h.Embed(ctx, "   ")
	if CosineSimilarity(empty, empty) < 0.999 {
		t.Error("empty text should still produce a unit vector")
	}
}

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	c.calls++
	return Vector{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dims() int { return 2 }

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	defer c.Close()

	first, _ := c.Embed(ctx, "hello")
	c.Wait()
	second, _ := c.Embed(ctx, "hello")

	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
	if first[0] != second[0] || first[1] != second[1] {
		t.Errorf("cached vector differs: %v vs %v", first, second)
	}
	if c.Dims() != 2 {
		t.Errorf("expected dims 2, got %d", c.Dims())
	}

	// Mutating a returned vector must not poison the cache.
	second[0] = -1
	third, _ := c.Embed(ctx, "hello")
	if third[0] != 5 {
		t.Errorf("cache entry mutated: %v", third)
	}
}
