package api

import (
	"encoding/json"
	"net/http"

	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/query"
)

// QueryHandler streams multi-hop query execution over Server-Sent Events.
type QueryHandler struct {
	executor *query.Executor
	logger   log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(executor *query.Executor, logger log.Logger) *QueryHandler {
	return &QueryHandler{executor: executor, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query/stream", h.stream)
}

// queryRequest is the JSON body for POST /api/query/stream.
type queryRequest struct {
	OwnerID       string  `json:"owner_id"`
	NotebookID    string  `json:"notebook_id,omitempty"`
	Question      string  `json:"question"`
	K             int     `json:"k,omitempty"`
	MinSimilarity float32 `json:"min_similarity,omitempty"`
}

// stream runs the query and forwards every executor event to the client as
// an SSE event. The event name and the "type" field in the JSON payload
// carry the same value so clients can dispatch on either.
func (h *QueryHandler) stream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.OwnerID == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "owner_id and question are required")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	events := h.executor.Execute(r.Context(), query.Request{
		OwnerID:       req.OwnerID,
		NotebookID:    req.NotebookID,
		Question:      req.Question,
		K:             req.K,
		MinSimilarity: req.MinSimilarity,
	})

	for ev := range events {
		payload, err := query.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to marshal event", "type", ev.EventType(), "error", err)
			continue
		}
		if err := sse.writeEvent(string(ev.EventType()), payload); err != nil {
			// Client went away; the executor observes the request context
			// and stops on its own.
			h.logger.Debug("SSE write failed, client disconnected", "error", err)
			return
		}
	}
}
