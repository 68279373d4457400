// Package chunk defines the atomic retrieval unit of the RAG core and the
// Store contract every persistence backend implements.
//
// A Chunk is a fragment of ingested document content paired with a
// fixed-dimension embedding. Chunks are scoped by owner, notebook and
// document; every retrieval operation filters by at least the owner.
//
// A chunk is "searchable" only while its embedding matches the dimension of
// the active embedder generation. Chunks with a missing or stale-dimension
// embedding are invisible to Nearest until they are re-embedded (see the
// reembed package).
package chunk

import (
	"errors"
	"fmt"
	"time"
)

// MaxK is the hard cap on the number of results a single Nearest call may
// return, regardless of the requested k.
const MaxK = 100

// DefaultMinSimilarity is the baseline similarity threshold applied when a
// caller does not specify one.
const DefaultMinSimilarity = 0.30

// ErrNotFound indicates the requested chunk does not exist in the store.
var ErrNotFound = errors.New("chunk not found")

// Chunk is the atomic retrieval unit.
type Chunk struct {
	ID         string            // Unique identifier (UUID)
	OwnerID    string            // Owning user; mandatory scope key
	NotebookID string            // Notebook scope; optional filter
	DocumentID string            // Parent document; delete cascades from it
	Content    string            // UTF-8 text, never empty
	Embedding  []float32         // nil until embedded; length = embedder dimension
	Metadata   map[string]string // Open key-value map (type, page, ...)
	CreatedAt  time.Time         // Immutable creation timestamp
}

// Searchable reports whether the chunk participates in similarity search
// for the given embedder dimension.
func (c Chunk) Searchable(dimension int) bool {
	return len(c.Embedding) == dimension && dimension > 0
}

// Result pairs a chunk with its similarity to a query vector.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity (1 - cosine distance)
}

// Scope restricts store operations to an owner and optionally a notebook
// or document. OwnerID may be empty only for administrative scans
// (migration across all tenants); retrieval paths always set it.
type Scope struct {
	OwnerID    string
	NotebookID string
	DocumentID string
}

// Matches reports whether the chunk falls inside the scope.
// Empty scope fields act as wildcards.
func (s Scope) Matches(c Chunk) bool {
	if s.OwnerID != "" && c.OwnerID != s.OwnerID {
		return false
	}
	if s.NotebookID != "" && c.NotebookID != s.NotebookID {
		return false
	}
	if s.DocumentID != "" && c.DocumentID != s.DocumentID {
		return false
	}
	return true
}

// ValidationError reports malformed chunk or query input. It is never
// retried and is returned straight to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the invariants a chunk must satisfy before it may be
// written. dimension is the active embedder dimension; a nil embedding is
// allowed (the chunk is simply not searchable yet), but a present embedding
// of the wrong length is rejected.
func Validate(c Chunk, dimension int) error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if c.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if c.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if c.Embedding != nil && len(c.Embedding) != dimension {
		return &ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("length %d does not match dimension %d", len(c.Embedding), dimension),
		}
	}
	return nil
}
