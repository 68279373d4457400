// Package postgres implements the chunk store on PostgreSQL + pgvector.
//
// The embedding column is declared as an untyped vector so that chunks
// embedded by an older model generation (different dimensionality) remain
// stored and selectable for migration; similarity search filters on
// vector_dims() so only current-generation vectors ever reach the cosine
// operator.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/revisio/revisio/internal/chunk"
)

// Store is the durable chunk.Store implementation.
//
// Store is safe for concurrent use; the pool serializes nothing beyond
// what PostgreSQL itself requires.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

// NewStore creates a store over an initialized pool. dimension is the
// active embedder dimension used for Put validation and search filtering.
func NewStore(pool *pgxpool.Pool, dimension int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, dimension: dimension, logger: logger}
}

// Put inserts a chunk, or replaces it when the ID already exists.
func (s *Store) Put(ctx context.Context, c chunk.Chunk) error {
	if err := chunk.Validate(c, s.dimension); err != nil {
		return err
	}

	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var embedding *pgvector.Vector
	if c.Embedding != nil {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chunks (id, owner_id, notebook_id, document_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		c.ID, c.OwnerID, c.NotebookID, c.DocumentID, c.Content, embedding, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("insert chunk %q: %w", c.ID, err)
	}

	s.logger.Debug("stored chunk", "id", c.ID, "owner", c.OwnerID, "content_length", len(c.Content))
	return nil
}

// ByScope returns chunks in the scope in insertion order.
func (s *Store) ByScope(ctx context.Context, scope chunk.Scope) ([]chunk.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, notebook_id, document_id, content, embedding, metadata, created_at
		FROM chunks
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR notebook_id = $2)
		  AND ($3 = '' OR document_id = $3)
		ORDER BY seq`,
		scope.OwnerID, scope.NotebookID, scope.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("scan scope: %w", err)
	}
	defer rows.Close()

	return s.collectChunks(rows)
}

// Nearest runs SQL-side cosine similarity over current-generation
// embeddings in the scope. The candidate set is materialized first so the
// distance operator never sees a stale-dimension vector.
func (s *Store) Nearest(ctx context.Context, scope chunk.Scope, query []float32, k int, minSimilarity float32) ([]chunk.Result, error) {
	if len(query) != s.dimension {
		return nil, &chunk.ValidationError{Field: "query_vector", Reason: "length does not match active dimension"}
	}
	if k <= 0 || k > chunk.MaxK {
		k = chunk.MaxK
	}

	queryVec := pgvector.NewVector(query)
	rows, err := s.pool.Query(ctx, `
		WITH candidates AS MATERIALIZED (
			SELECT id, owner_id, notebook_id, document_id, content, embedding, metadata, created_at, seq
			FROM chunks
			WHERE owner_id = $1
			  AND ($2 = '' OR notebook_id = $2)
			  AND embedding IS NOT NULL
			  AND vector_dims(embedding) = $3
		)
		SELECT id, owner_id, notebook_id, document_id, content, embedding, metadata, created_at,
		       1 - (embedding <=> $4) AS similarity
		FROM candidates
		WHERE 1 - (embedding <=> $4) >= $5
		ORDER BY similarity DESC, seq
		LIMIT $6`,
		scope.OwnerID, scope.NotebookID, s.dimension, queryVec, minSimilarity, k)
	if err != nil {
		return nil, fmt.Errorf("nearest query: %w", err)
	}
	defer rows.Close()

	var results []chunk.Result
	for rows.Next() {
		var (
			c          chunk.Chunk
			embedding  *pgvector.Vector
			metadata   []byte
			similarity float64
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.NotebookID, &c.DocumentID, &c.Content,
			&embedding, &metadata, &c.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		s.fillChunk(&c, embedding, metadata)
		results = append(results, chunk.Result{Chunk: c, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// NeedingMigration returns chunks whose embedding is absent or has a
// length other than dimension.
func (s *Store) NeedingMigration(ctx context.Context, scope chunk.Scope, dimension int) ([]chunk.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, notebook_id, document_id, content, embedding, metadata, created_at
		FROM chunks
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR notebook_id = $2)
		  AND (embedding IS NULL OR vector_dims(embedding) <> $3)
		ORDER BY seq`,
		scope.OwnerID, scope.NotebookID, dimension)
	if err != nil {
		return nil, fmt.Errorf("select stale chunks: %w", err)
	}
	defer rows.Close()

	return s.collectChunks(rows)
}

// CountByScope returns the number of chunks in the scope.
func (s *Store) CountByScope(ctx context.Context, scope chunk.Scope) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chunks
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR notebook_id = $2)
		  AND ($3 = '' OR document_id = $3)`,
		scope.OwnerID, scope.NotebookID, scope.DocumentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// UpdateEmbedding replaces only the embedding of the identified chunk.
func (s *Store) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.pool.Exec(ctx, `UPDATE chunks SET embedding = $2 WHERE id = $1`, id, vec)
	if err != nil {
		return fmt.Errorf("update embedding %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return chunk.ErrNotFound
	}
	return nil
}

// DeleteByDocument removes every chunk of the document owned by ownerID.
func (s *Store) DeleteByDocument(ctx context.Context, ownerID, documentID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE owner_id = $1 AND document_id = $2`, ownerID, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %q: %w", documentID, err)
	}
	s.logger.Debug("deleted document chunks", "document", documentID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// collectChunks drains rows that select the full chunk column set.
func (s *Store) collectChunks(rows pgx.Rows) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	for rows.Next() {
		var (
			c         chunk.Chunk
			embedding *pgvector.Vector
			metadata  []byte
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.NotebookID, &c.DocumentID, &c.Content,
			&embedding, &metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		s.fillChunk(&c, embedding, metadata)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// fillChunk decodes the nullable embedding and metadata columns.
func (s *Store) fillChunk(c *chunk.Chunk, embedding *pgvector.Vector, metadata []byte) {
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "chunk_id", c.ID, "error", err)
			c.Metadata = make(map[string]string)
		}
	}
}
