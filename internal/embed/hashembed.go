package embed

import (
	"context"
	"math"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// HashEmbedder is a deterministic feature-hashing embedder. It exists
// so the engine works offline and so tests have a reproducible backend;
// a real deployment injects a model-backed Embedder instead.
//
// Tokens are lowercased identifier-ish words; each token's blake2b
// digest selects a bucket and sign, and the final vector is
// L2-normalized.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a feature-hashing embedder with the given
// dimension count (default 256 when non-positive).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions implements Embedder.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed implements Embedder. It never fails and ignores ctx beyond the
// contract; determinism matters more than speed here.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)

	for _, tok := range Tokenize(text) {
		sum := blake2b.Sum256([]byte(tok))
		bucket := int(uint32(sum[0])|uint32(sum[1])<<8|uint32(sum[2])<<16) % h.dims
		sign := float32(1)
		if sum[3]&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	// L2 normalize so cosine similarity behaves.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Tokenize splits text into lowercase word tokens, breaking camelCase
// and snake_case identifiers apart so code and prose land in shared
// buckets.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 1 {
			tokens = append(tokens, strings.ToLower(cur.String()))
		}
		cur.Reset()
	}

	prevLower := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && prevLower {
				flush()
			}
			cur.WriteRune(r)
			prevLower = unicode.IsLower(r)
		case unicode.IsDigit(r):
			cur.WriteRune(r)
			prevLower = false
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return tokens
}
