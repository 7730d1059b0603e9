package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is an offline embedder using feature hashing over words.
// Texts sharing words land close together, which is enough for local use
// and deterministic tests; it carries no semantic model.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. Default dims match all-MiniLM-L6-v2.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	vec := make(Vector, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		f.Write([]byte(w))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	if isZero(vec) {
		// no words, or their signs cancelled out; keep it normalizable
		vec[0] = 1
	}
	return Normalize(vec), nil
}

func (h *HashEmbedder) Dims() int { return h.dims }

func isZero(v Vector) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
