package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/testutil"
)

const dim = 16

func TestIngester_Ingest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := chunk.NewMemoryStore(dim, testutil.QuietLogger())
	embedder := testutil.NewMockEmbedder(dim)
	ingester := ingest.New(store, embedder, ingest.NewChunker(10), testutil.QuietLogger())

	result, err := ingester.Ingest(ctx, ingest.Document{
		OwnerID:    "u1",
		NotebookID: "nb1",
		Title:      "Cell Biology",
		Text:       "Mitochondria produce ATP. The nucleus stores DNA. Ribosomes build proteins. The membrane controls transport.",
	})
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if result.DocumentID == "" {
		t.Error("Ingest() returned empty document ID")
	}
	if result.Chunks == 0 {
		t.Fatal("Ingest() stored no chunks")
	}

	stored, err := store.ByScope(ctx, chunk.Scope{OwnerID: "u1", DocumentID: result.DocumentID})
	if err != nil {
		t.Fatalf("ByScope() failed: %v", err)
	}
	if len(stored) != result.Chunks {
		t.Fatalf("stored %d chunks, result reported %d", len(stored), result.Chunks)
	}
	for _, c := range stored {
		if c.NotebookID != "nb1" {
			t.Errorf("chunk %s notebook = %q, want nb1", c.ID, c.NotebookID)
		}
		if len(c.Embedding) != dim {
			t.Errorf("chunk %s embedding length = %d, want %d", c.ID, len(c.Embedding), dim)
		}
		if c.Metadata["title"] != "Cell Biology" {
			t.Errorf("chunk %s title metadata = %q", c.ID, c.Metadata["title"])
		}
		if c.Metadata["index"] == "" {
			t.Errorf("chunk %s missing index metadata", c.ID)
		}
	}
}

func TestIngester_IngestValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := chunk.NewMemoryStore(dim, testutil.QuietLogger())
	ingester := ingest.New(store, testutil.NewMockEmbedder(dim), nil, testutil.QuietLogger())

	tests := []struct {
		name string
		doc  ingest.Document
	}{
		{"missing owner", ingest.Document{Text: "some text."}},
		{"empty text", ingest.Document{OwnerID: "u1", Text: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingester.Ingest(ctx, tt.doc)
			var verr *chunk.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Ingest() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestIngester_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := chunk.NewMemoryStore(dim, testutil.QuietLogger())
	embedder := testutil.NewMockEmbedder(dim)
	ingester := ingest.New(store, embedder, nil, testutil.QuietLogger())

	keep, err := ingester.Ingest(ctx, ingest.Document{OwnerID: "u1", Title: "keep", Text: "Kept text."})
	if err != nil {
		t.Fatalf("Ingest(keep) failed: %v", err)
	}
	gone, err := ingester.Ingest(ctx, ingest.Document{OwnerID: "u1", Title: "gone", Text: "Deleted text."})
	if err != nil {
		t.Fatalf("Ingest(gone) failed: %v", err)
	}

	deleted, err := ingester.Delete(ctx, "u1", gone.DocumentID)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if deleted != int64(gone.Chunks) {
		t.Errorf("deleted %d chunks, want %d", deleted, gone.Chunks)
	}

	remaining, err := store.ByScope(ctx, chunk.Scope{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("ByScope() failed: %v", err)
	}
	if len(remaining) != keep.Chunks {
		t.Errorf("%d chunks remain, want %d", len(remaining), keep.Chunks)
	}
}
