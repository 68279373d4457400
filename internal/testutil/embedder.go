// Package testutil provides shared testing utilities for the revisio project.
//
// This package contains reusable test infrastructure that can be used across
// multiple packages, following the pattern of Go standard library packages
// like net/http/httptest and testing/iotest.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/revisio/revisio/internal/embed"
)

// MockEmbedder is a deterministic in-process Embedder. The vector for a
// text is derived from an FNV hash of its bytes, so equal texts always
// embed identically and different texts almost never do. Vectors are
// L2-normalized so cosine similarity behaves like it does with real models.
type MockEmbedder struct {
	cfg embed.Config

	mu sync.Mutex
	// FailOn maps exact texts to errors, for exercising per-item failure
	// handling in callers.
	failOn map[string]error
	calls  int
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{
		cfg:    embed.Config{Model: fmt.Sprintf("mock-embedder-%dd", dimension), Dimension: dimension},
		failOn: make(map[string]error),
	}
}

// FailOn makes future Embed calls for exactly this text return err.
func (m *MockEmbedder) FailOn(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[text] = err
}

// Calls reports how many texts have been embedded (batch members count
// individually).
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed implements embed.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	err := m.failOn[text]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return Vector(text, m.cfg.Dimension), nil
}

// EmbedBatch implements embed.Embedder.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

// Config implements embed.Embedder.
func (m *MockEmbedder) Config() embed.Config {
	return m.cfg
}

// Vector returns the deterministic unit vector the mock embedder would
// produce for text. Exposed so tests can compute expected similarities.
func Vector(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		// xorshift64 keeps the sequence cheap and fully deterministic.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// VectorAt returns a unit vector whose cosine similarity to base is
// exactly sim. base must itself be a unit vector, as produced by Vector or
// the mock embedder. Tests use it to place chunks at a chosen distance
// from a query, for example just below a similarity floor.
func VectorAt(base []float32, sim float32) []float32 {
	// Gram-Schmidt: take an independent hash vector, strip its projection
	// onto base, and mix the unit remainder back in at the right angle.
	other := Vector("vector-at-direction", len(base))
	var dot float64
	for i := range base {
		dot += float64(other[i]) * float64(base[i])
	}

	ortho := make([]float64, len(base))
	var norm float64
	for i := range base {
		ortho[i] = float64(other[i]) - dot*float64(base[i])
		norm += ortho[i] * ortho[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(base))
	scale := math.Sqrt(1 - float64(sim)*float64(sim))
	for i := range base {
		out[i] = float32(float64(sim)*float64(base[i]) + scale*ortho[i]/norm)
	}
	return out
}
