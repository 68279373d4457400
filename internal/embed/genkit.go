package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// GenkitEmbedder adapts a Genkit ai.Embedder (Google AI, Vertex, Ollama —
// whatever the app wired) to the Embedder contract, enforcing the
// configured dimension on every returned vector.
type GenkitEmbedder struct {
	embedder ai.Embedder
	cfg      Config
}

// NewGenkitEmbedder wraps an already-initialized Genkit embedder.
func NewGenkitEmbedder(embedder ai.Embedder, cfg Config) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder, cfg: cfg}
}

// Embed converts a single text into a vector of cfg.Dimension floats.
func (g *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts texts in order, one request for the whole batch.
func (g *GenkitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if err := checkDimension(g.cfg, e.Embedding); err != nil {
			return nil, err
		}
		vecs[i] = e.Embedding
	}
	return vecs, nil
}

// Config returns the active embedder generation.
func (g *GenkitEmbedder) Config() Config {
	return g.cfg
}
