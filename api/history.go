package api

import (
	"net/http"
	"strconv"

	"github.com/revisio/revisio/internal/history"
	"github.com/revisio/revisio/internal/log"
)

// HistoryHandler lists recent query sessions.
type HistoryHandler struct {
	store  *history.Store
	logger log.Logger
}

// NewHistoryHandler creates a new history handler. store may be nil when
// the history log is disabled.
func NewHistoryHandler(store *history.Store, logger log.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.list)
}

// historyEntry is one logged session in the response.
type historyEntry struct {
	ID         int64  `json:"id"`
	NotebookID string `json:"notebook_id,omitempty"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Kind       string `json:"kind"`
	Steps      int    `json:"steps"`
	Chunks     int    `json:"chunks"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "history log is not configured")
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "owner_id query parameter is required")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.store.Recent(r.Context(), ownerID, limit)
	if err != nil {
		h.logger.Error("history lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "history lookup failed")
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:         e.ID,
			NotebookID: e.NotebookID,
			Question:   e.Question,
			Answer:     e.Answer,
			Kind:       e.Kind,
			Steps:      e.Steps,
			Chunks:     e.Chunks,
			DurationMS: e.DurationMS,
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
