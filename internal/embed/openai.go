package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
// Selected when the configured provider is "openai".
type OpenAIEmbedder struct {
	client openai.Client
	cfg    Config
}

// NewOpenAIEmbedder wraps an OpenAI client. The model's native dimension
// must match cfg.Dimension; for models that support Matryoshka truncation
// the requested dimension is passed through to the API.
func NewOpenAIEmbedder(client openai.Client, cfg Config) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, cfg: cfg}
}

// Embed converts a single text into a vector of cfg.Dimension floats.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts texts in order, one API request for the whole batch.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(o.cfg.Model),
		Dimensions: openai.Int(int64(o.cfg.Dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		if err := checkDimension(o.cfg, vec); err != nil {
			return nil, err
		}
		// The API may return data out of order; Index is authoritative.
		if d.Index < 0 || int(d.Index) >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = vec
	}
	return vecs, nil
}

// Config returns the active embedder generation.
func (o *OpenAIEmbedder) Config() Config {
	return o.cfg
}
