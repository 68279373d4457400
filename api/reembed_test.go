package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/testutil"
)

// markStale replaces one of the owner's chunk embeddings with a vector from
// an older embedder generation.
func markStale(t *testing.T, env *testEnv, ownerID string) {
	t.Helper()

	chunks, err := env.store.ByScope(context.Background(), chunk.Scope{OwnerID: ownerID})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	require.NoError(t, env.store.UpdateEmbedding(context.Background(), chunks[0].ID, testutil.Vector("old generation", 16)))
}

func TestReembedHandler_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells", "Mitosis divides cells. Meiosis halves chromosomes.")
	markStale(t, env, "alice")

	w := postJSON(t, env.server.Handler(), "/api/reembed",
		`{"owner_id": "alice", "dry_run": true}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Scanned        int64 `json:"scanned"`
		NeedsMigration int   `json:"needs_migration"`
		Migrated       int   `json:"migrated"`
		DryRun         bool  `json:"dry_run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Positive(t, resp.Scanned)
	assert.Equal(t, 1, resp.NeedsMigration)
	assert.Zero(t, resp.Migrated)
	assert.True(t, resp.DryRun)
}

func TestReembedHandler_MigratesStaleChunks(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells", "Mitosis divides cells. Meiosis halves chromosomes.")
	markStale(t, env, "alice")

	w := postJSON(t, env.server.Handler(), "/api/reembed", `{"owner_id": "alice"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		NeedsMigration int               `json:"needs_migration"`
		Migrated       int               `json:"migrated"`
		Failed         []json.RawMessage `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.NeedsMigration)
	assert.Equal(t, 1, resp.Migrated)
	assert.Empty(t, resp.Failed)

	// The chunk is searchable again at the active dimension.
	pending, err := env.store.NeedingMigration(context.Background(), chunk.Scope{OwnerID: "alice"}, testDim)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReembedHandler_UnscopedRunCoversAllOwners(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells", "Mitosis divides cells. Meiosis halves chromosomes.")
	env.seedDocument(t, "bob", "", "Plants", "Photosynthesis converts light into sugar.")
	markStale(t, env, "alice")
	markStale(t, env, "bob")

	w := postJSON(t, env.server.Handler(), "/api/reembed", `{}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		NeedsMigration int               `json:"needs_migration"`
		Migrated       int               `json:"migrated"`
		Failed         []json.RawMessage `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.NeedsMigration)
	assert.Equal(t, 2, resp.Migrated)
	assert.Empty(t, resp.Failed)

	for _, owner := range []string{"alice", "bob"} {
		pending, err := env.store.NeedingMigration(context.Background(), chunk.Scope{OwnerID: owner}, testDim)
		require.NoError(t, err)
		assert.Empty(t, pending, "owner %s still has stale chunks", owner)
	}
}
