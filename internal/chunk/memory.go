package chunk

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation with exact cosine
// similarity computed in Go. It backs unit tests and single-process
// deployments that have no PostgreSQL available; the postgres package
// provides the durable equivalent.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	dimension int
	logger    *slog.Logger

	mu     sync.RWMutex
	chunks []Chunk          // insertion order preserved for stable tie-breaks
	index  map[string]int   // id -> position in chunks
}

// NewMemoryStore creates an empty in-memory store for the given active
// embedder dimension.
func NewMemoryStore(dimension int, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		dimension: dimension,
		logger:    logger,
		index:     make(map[string]int),
	}
}

// Put inserts a chunk after validation. Re-inserting an existing ID
// replaces the stored chunk in place, keeping its insertion position.
func (s *MemoryStore) Put(_ context.Context, c Chunk) error {
	if err := Validate(c, s.dimension); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[c.ID]; ok {
		s.chunks[pos] = c
		return nil
	}
	s.index[c.ID] = len(s.chunks)
	s.chunks = append(s.chunks, c)

	s.logger.Debug("stored chunk", "id", c.ID, "owner", c.OwnerID, "notebook", c.NotebookID)
	return nil
}

// ByScope returns chunks in the scope in insertion order.
func (s *MemoryStore) ByScope(_ context.Context, scope Scope) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chunk
	for _, c := range s.chunks {
		if scope.Matches(c) {
			out = append(out, cloneChunk(c))
		}
	}
	return out, nil
}

// Nearest performs an exact scan: scope filter, current-dimension filter,
// cosine similarity, descending sort with stable insertion-order ties,
// threshold filter, then truncation to min(k, MaxK).
func (s *MemoryStore) Nearest(_ context.Context, scope Scope, query []float32, k int, minSimilarity float32) ([]Result, error) {
	if len(query) != s.dimension {
		return nil, &ValidationError{Field: "query_vector", Reason: "length does not match active dimension"}
	}
	if k <= 0 || k > MaxK {
		k = MaxK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		pos int
		res Result
	}
	var candidates []scored
	for pos, c := range s.chunks {
		if !scope.Matches(c) || !c.Searchable(s.dimension) {
			continue
		}
		sim := CosineSimilarity(query, c.Embedding)
		if sim < minSimilarity {
			continue
		}
		candidates = append(candidates, scored{pos: pos, res: Result{Chunk: cloneChunk(c), Similarity: sim}})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].res.Similarity != candidates[j].res.Similarity {
			return candidates[i].res.Similarity > candidates[j].res.Similarity
		}
		return candidates[i].pos < candidates[j].pos
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = c.res
	}
	return results, nil
}

// NeedingMigration returns chunks whose embedding is absent or has a stale
// length for the given dimension.
func (s *MemoryStore) NeedingMigration(_ context.Context, scope Scope, dimension int) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chunk
	for _, c := range s.chunks {
		if !scope.Matches(c) {
			continue
		}
		if c.Embedding == nil || len(c.Embedding) != dimension {
			out = append(out, cloneChunk(c))
		}
	}
	return out, nil
}

// CountByScope returns the number of chunks in the scope.
func (s *MemoryStore) CountByScope(_ context.Context, scope Scope) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.chunks {
		if scope.Matches(c) {
			n++
		}
	}
	return n, nil
}

// UpdateEmbedding replaces only the embedding of the identified chunk.
func (s *MemoryStore) UpdateEmbedding(_ context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	s.chunks[pos].Embedding = append([]float32(nil), embedding...)
	return nil
}

// DeleteByDocument removes every chunk of the document owned by ownerID.
func (s *MemoryStore) DeleteByDocument(_ context.Context, ownerID, documentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Chunk
	var deleted int64
	for _, c := range s.chunks {
		if c.OwnerID == ownerID && c.DocumentID == documentID {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	s.index = make(map[string]int, len(kept))
	for pos, c := range kept {
		s.index[c.ID] = pos
	}
	return deleted, nil
}

// cloneChunk copies a chunk so callers cannot mutate store internals.
func cloneChunk(c Chunk) Chunk {
	out := c
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
