package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/embed"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/search"
)

// SearchHandler handles similarity search requests.
type SearchHandler struct {
	engine *search.Engine
	logger log.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *search.Engine, logger log.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// searchRequest is the JSON body for POST /api/search. An omitted or zero
// min_similarity selects the standard cutoff.
type searchRequest struct {
	OwnerID       string  `json:"owner_id"`
	NotebookID    string  `json:"notebook_id,omitempty"`
	Query         string  `json:"query"`
	K             int     `json:"k,omitempty"`
	MinSimilarity float32 `json:"min_similarity,omitempty"`
}

// searchResult is one search hit in the response.
type searchResult struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id,omitempty"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// searchResponse is the JSON body for a successful search.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	minSim := req.MinSimilarity
	if minSim == 0 {
		minSim = chunk.DefaultMinSimilarity
	}

	results, err := h.engine.Search(r.Context(), search.Request{
		OwnerID:       req.OwnerID,
		NotebookID:    req.NotebookID,
		Query:         req.Query,
		K:             req.K,
		MinSimilarity: minSim,
	})
	if err != nil {
		var verr *chunk.ValidationError
		var derr *embed.DimensionError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
		case errors.As(err, &derr):
			writeError(w, http.StatusUnprocessableEntity, "dimension_mismatch", derr.Error())
		default:
			h.logger.Error("search failed", "error", err)
			writeError(w, http.StatusInternalServerError, "search_failed", "similarity search failed")
		}
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, searchResult{
			ChunkID:    res.Chunk.ID,
			DocumentID: res.Chunk.DocumentID,
			Content:    res.Chunk.Content,
			Similarity: res.Similarity,
			Metadata:   res.Chunk.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
