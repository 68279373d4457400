package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/query"
	"github.com/revisio/revisio/internal/reembed"
	"github.com/revisio/revisio/internal/search"
	"github.com/revisio/revisio/internal/testutil"
)

const testDim = 64

// testEnv wires a full server onto in-memory storage and deterministic
// model mocks.
type testEnv struct {
	store     *chunk.MemoryStore
	embedder  *testutil.MockEmbedder
	generator *testutil.MockGenerator
	ingester  *ingest.Ingester
	server    *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.NewNop()
	store := chunk.NewMemoryStore(testDim, logger)
	embedder := testutil.NewMockEmbedder(testDim)
	generator := testutil.NewMockGenerator("the synthesized answer")

	engine := search.New(store, embedder, logger)
	ingester := ingest.New(store, embedder, ingest.NewChunker(0), logger)
	migrator := reembed.New(store, embedder, logger)
	planner := query.NewPlanner(engine, generator, query.HeuristicClassifier{}, query.DefaultConfig(), logger)
	executor := query.NewExecutor(planner, nil, logger)

	return &testEnv{
		store:     store,
		embedder:  embedder,
		generator: generator,
		ingester:  ingester,
		server:    NewServer(nil, engine, executor, ingester, migrator, nil, logger),
	}
}

// seedDocument ingests text and returns the document ID.
func (env *testEnv) seedDocument(t *testing.T, ownerID, notebookID, title, text string) string {
	t.Helper()

	result, err := env.ingester.Ingest(context.Background(), ingest.Document{
		OwnerID:    ownerID,
		NotebookID: notebookID,
		Title:      title,
		Text:       text,
	})
	require.NoError(t, err)
	return result.DocumentID
}

func TestServer_RoutesRegistered(t *testing.T) {
	env := newTestEnv(t)
	handler := env.server.Handler()

	// A request to an unregistered path falls through to the mux's 404.
	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Method mismatch on a registered pattern returns 405.
	req = httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_RunShutsDownOnContextCancel(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.server.Run(ctx, "127.0.0.1:0")
	}()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() after cancel = %v, want nil", err)
	}
}
