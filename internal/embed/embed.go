// Package embed wraps a single embedding model of fixed output
// dimensionality behind the Embedder contract used at ingest time,
// query time and during embedding migration.
//
// The active model and its dimension travel together in Config — there is
// no ambient global. All similarity comparisons are only valid between
// vectors of the same embedder generation, so every adapter enforces the
// configured dimension and fails loudly instead of truncating or padding.
package embed

import (
	"context"
	"fmt"
)

// Config identifies the active embedder generation. It is process-wide
// configuration set once at startup; changing the model requires a full
// migration pass over the chunk store.
type Config struct {
	// Model is the embedding model identifier
	// (e.g. "text-embedding-004", "text-embedding-3-small").
	Model string

	// Dimension is the fixed output vector length of the model
	// (e.g. 768). Vectors of any other length are rejected.
	Dimension int
}

// Embedder converts text into a fixed-length vector.
//
// Implementations must return vectors of exactly Config().Dimension
// elements or an error — never a silently truncated or padded vector.
type Embedder interface {
	// Embed converts one text into a vector of Config().Dimension floats.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts in order. The result has one vector per
	// input text; a failure on any member fails the whole call (per-item
	// tolerance is the migration controller's job, not the adapter's).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Config returns the active embedder generation.
	Config() Config
}

// DimensionError reports an embedding generation inconsistency: a vector
// whose length does not match the active dimension. It indicates a
// configuration bug and is surfaced, never retried.
type DimensionError struct {
	Model string
	Want  int
	Got   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedder %q returned %d-dim vector, want %d", e.Model, e.Got, e.Want)
}

// checkDimension validates a produced vector against the configuration.
func checkDimension(cfg Config, vec []float32) error {
	if len(vec) != cfg.Dimension {
		return &DimensionError{Model: cfg.Model, Want: cfg.Dimension, Got: len(vec)}
	}
	return nil
}
