// Package search implements the similarity search engine: thin
// orchestration that embeds a query text and delegates to the chunk
// store's nearest-neighbor operator.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/embed"
)

// DefaultTimeout bounds a single search (embedding + store query) so a
// slow vector search cannot block a session indefinitely.
const DefaultTimeout = 10 * time.Second

// Request describes one similarity search.
type Request struct {
	OwnerID       string  // mandatory tenant scope
	NotebookID    string  // optional notebook scope
	Query         string  // query text, non-empty
	K             int     // max results; 0 = store default cap
	MinSimilarity float32 // similarity floor; results below it are dropped
}

// Engine embeds query text via the Embedder Adapter and runs
// nearest-neighbor retrieval against the chunk store.
//
// Engine is safe for concurrent use.
type Engine struct {
	store    chunk.Store
	embedder embed.Embedder
	logger   *slog.Logger
}

// New creates a search engine over the store and embedder.
func New(store chunk.Store, embedder embed.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, logger: logger}
}

// Search embeds req.Query and returns the chunks at or above
// req.MinSimilarity, ordered by similarity descending. The floor is taken
// as given; callers that want the standard cutoff pass
// chunk.DefaultMinSimilarity.
//
// The query vector's length is checked against the configured dimension
// before it reaches the store. With a correctly configured embedder this
// can never fire; it exists to catch generation mismatches early instead
// of silently comparing incompatible vectors.
func (e *Engine) Search(ctx context.Context, req Request) ([]chunk.Result, error) {
	if req.OwnerID == "" {
		return nil, &chunk.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if req.Query == "" {
		return nil, &chunk.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	cfg := e.embedder.Config()
	if len(vec) != cfg.Dimension {
		return nil, &embed.DimensionError{Model: cfg.Model, Want: cfg.Dimension, Got: len(vec)}
	}

	scope := chunk.Scope{OwnerID: req.OwnerID, NotebookID: req.NotebookID}
	results, err := e.store.Nearest(ctx, scope, vec, req.K, req.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}

	e.logger.Debug("similarity search",
		"owner", req.OwnerID,
		"notebook", req.NotebookID,
		"k", req.K,
		"min_similarity", req.MinSimilarity,
		"results", len(results),
	)
	return results, nil
}
