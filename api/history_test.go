package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revisio/revisio/internal/history"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/query"
)

func newHistoryMux(t *testing.T, store *history.Store) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	NewHistoryHandler(store, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func getHistory(t *testing.T, mux *http.ServeMux, rawQuery string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/history?"+rawQuery, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHistoryHandler_Disabled(t *testing.T) {
	mux := newHistoryMux(t, nil)

	w := getHistory(t, mux, "owner_id=alice")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "history_disabled", resp.Error)
}

func TestHistoryHandler_ListsSessions(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Record(context.Background(), query.Record{
		OwnerID:  "alice",
		Question: "What is mitosis?",
		Answer:   "Cell division.",
		Kind:     query.SingleHop,
		Steps:    1,
		Chunks:   3,
		Duration: 1200 * time.Millisecond,
	}))

	mux := newHistoryMux(t, store)
	w := getHistory(t, mux, "owner_id=alice")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []struct {
			Question   string `json:"question"`
			Answer     string `json:"answer"`
			Kind       string `json:"kind"`
			Steps      int    `json:"steps"`
			DurationMS int64  `json:"duration_ms"`
			CreatedAt  string `json:"created_at"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)

	e := resp.Entries[0]
	assert.Equal(t, "What is mitosis?", e.Question)
	assert.Equal(t, "Cell division.", e.Answer)
	assert.Equal(t, "single", e.Kind)
	assert.Equal(t, 1, e.Steps)
	assert.Equal(t, int64(1200), e.DurationMS)
	assert.NotEmpty(t, e.CreatedAt)
}

func TestHistoryHandler_Validation(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mux := newHistoryMux(t, store)

	tests := []struct {
		name     string
		rawQuery string
	}{
		{"missing owner", ""},
		{"bad limit", "owner_id=alice&limit=zero"},
		{"negative limit", "owner_id=alice&limit=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getHistory(t, mux, tt.rawQuery)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
