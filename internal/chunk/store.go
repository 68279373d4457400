package chunk

import "context"

// Store is the contract every chunk persistence backend implements.
// Following Go best practices the interface is defined by the consumer
// side of the dependency (search engine, migration controller, ingester),
// not by the backends.
//
// Implementations must be safe for concurrent readers. Writes to distinct
// chunk IDs may proceed concurrently; callers never write the same chunk
// from two goroutines.
type Store interface {
	// Put inserts a chunk. It fails with *ValidationError if the content
	// is empty or a present embedding has the wrong length.
	Put(ctx context.Context, c Chunk) error

	// ByScope returns all chunks in the scope, ordered by insertion.
	ByScope(ctx context.Context, scope Scope) ([]Chunk, error)

	// Nearest returns up to k chunks most similar to the query vector,
	// restricted to the scope and to chunks whose embedding matches the
	// active dimension. Results are sorted by similarity descending with
	// ties broken by insertion order, filtered by minSimilarity, and
	// truncated to min(k, MaxK). Read-only.
	Nearest(ctx context.Context, scope Scope, query []float32, k int, minSimilarity float32) ([]Result, error)

	// NeedingMigration returns chunks in the scope whose embedding is
	// absent or whose length differs from dimension, ordered by insertion.
	NeedingMigration(ctx context.Context, scope Scope, dimension int) ([]Chunk, error)

	// CountByScope returns the number of chunks in the scope.
	CountByScope(ctx context.Context, scope Scope) (int64, error)

	// UpdateEmbedding replaces only the embedding of the identified chunk,
	// leaving every other field untouched. Returns ErrNotFound when the
	// chunk does not exist.
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error

	// DeleteByDocument removes every chunk belonging to the document,
	// scoped to the owner. Returns the number of chunks removed.
	DeleteByDocument(ctx context.Context, ownerID, documentID string) (int64, error)
}
