// Package embed defines the embedding backend contract. The engine
// treats embedding as an external collaborator: any implementation of
// Embedder can be injected, and callers wrap it with a timeout so a
// slow backend degrades the affected unit instead of the whole batch.
package embed

import (
	"context"
	"math"
	"time"

	"ckg/internal/errors"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the vector for the given text. Implementations must
	// be safe for concurrent use.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector width this backend produces.
	Dimensions() int
}

type timeoutEmbedder struct {
	inner Embedder
	d     time.Duration
}

// WithTimeout wraps an Embedder so every call is bounded by d. A call
// that exceeds the deadline returns a Timeout error; the caller keeps
// the unit in degraded form per the error policy. The inner call is
// abandoned, not cancelled beyond its context.
func WithTimeout(inner Embedder, d time.Duration) Embedder {
	return &timeoutEmbedder{inner: inner, d: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := t.inner.Embed(ctx, text)
		ch <- result{vec, err}
	}()

	select {
	case r := <-ch:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.Timeout, "embedding call exceeded deadline", ctx.Err())
	}
}

func (t *timeoutEmbedder) Dimensions() int {
	return t.inner.Dimensions()
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// has zero magnitude (degraded units carry zero vectors and must never
// win semantic ranking).
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZero reports whether a vector is all zeros (a degraded embedding).
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
