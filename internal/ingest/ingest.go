package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/embed"
)

// Document is the input to ingestion: raw text plus its scope.
type Document struct {
	OwnerID    string
	NotebookID string
	Title      string
	Text       string
}

// Result reports one ingestion.
type Result struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// Ingester chunks, embeds and stores documents.
type Ingester struct {
	store    chunk.Store
	embedder embed.Embedder
	chunker  *Chunker
	logger   *slog.Logger
}

// New creates an ingester; a nil chunker uses the default token budget.
func New(store chunk.Store, embedder embed.Embedder, chunker *Chunker, logger *slog.Logger) *Ingester {
	if chunker == nil {
		chunker = NewChunker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, embedder: embedder, chunker: chunker, logger: logger}
}

// Ingest splits the document, embeds every piece in one batch and stores
// the resulting chunks. A new document ID is minted and returned; chunks
// carry positional metadata (type, index) and the document title.
func (in *Ingester) Ingest(ctx context.Context, doc Document) (Result, error) {
	if doc.OwnerID == "" {
		return Result{}, &chunk.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}

	pieces := in.chunker.Split(doc.Text)
	if len(pieces) == 0 {
		return Result{}, &chunk.ValidationError{Field: "text", Reason: "no ingestible content"}
	}

	vecs, err := in.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return Result{}, fmt.Errorf("embed document: %w", err)
	}

	docID := uuid.NewString()
	now := time.Now()
	for i, piece := range pieces {
		c := chunk.Chunk{
			ID:         uuid.NewString(),
			OwnerID:    doc.OwnerID,
			NotebookID: doc.NotebookID,
			DocumentID: docID,
			Content:    piece,
			Embedding:  vecs[i],
			Metadata: map[string]string{
				"type":  "text",
				"title": doc.Title,
				"index": strconv.Itoa(i),
			},
			CreatedAt: now,
		}
		if err := in.store.Put(ctx, c); err != nil {
			return Result{}, fmt.Errorf("store chunk %d: %w", i, err)
		}
	}

	in.logger.Info("document ingested",
		"document", docID,
		"owner", doc.OwnerID,
		"notebook", doc.NotebookID,
		"chunks", len(pieces),
	)
	return Result{DocumentID: docID, Chunks: len(pieces)}, nil
}

// Delete removes a document's chunks (cascading ownership).
func (in *Ingester) Delete(ctx context.Context, ownerID, documentID string) (int64, error) {
	if ownerID == "" {
		return 0, &chunk.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	deleted, err := in.store.DeleteByDocument(ctx, ownerID, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %q: %w", documentID, err)
	}
	in.logger.Info("document deleted", "document", documentID, "owner", ownerID, "chunks", deleted)
	return deleted, nil
}
