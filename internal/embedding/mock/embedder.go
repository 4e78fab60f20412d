// Package mock provides test doubles for the embedding collaborators.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Dimensions is the length of the default deterministic vectors.
const Dimensions = 8

// Embedder is a test double for embedding.Embedder and embedding.Captioner.
// Behaviour is injected via function fields; nil fields fall back to a
// deterministic vector derived from the input text.
type Embedder struct {
	EmbedFunc   func(ctx context.Context, text string) ([]float64, error)
	CaptionFunc func(ctx context.Context, imageURL string) (string, []float64, error)

	mu        sync.Mutex
	callCount int
}

// NewEmbedder creates a mock with default deterministic behaviour.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Embed returns EmbedFunc's answer or a deterministic unit vector.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.count()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return Vector(text), nil
}

// Caption returns CaptionFunc's answer or a caption echoing imageURL.
func (m *Embedder) Caption(ctx context.Context, imageURL string) (string, []float64, error) {
	m.count()
	if m.CaptionFunc != nil {
		return m.CaptionFunc(ctx, imageURL)
	}
	caption := "image at " + imageURL
	return caption, Vector(caption), nil
}

// CallCount returns the number of calls to any method.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *Embedder) count() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}

// Vector derives a deterministic unit vector from text.
func Vector(text string) []float64 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float64, Dimensions)
	var sum float64
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float64(seed%1000)/1000.0 + 0.001
		sum += vec[i] * vec[i]
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
