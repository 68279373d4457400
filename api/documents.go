package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/log"
)

// DocumentHandler handles document ingestion and removal.
type DocumentHandler struct {
	ingester *ingest.Ingester
	logger   log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(ingester *ingest.Ingester, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{ingester: ingester, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.create)
	mux.HandleFunc("DELETE /api/documents", h.remove)
}

// createRequest is the JSON body for POST /api/documents.
type createRequest struct {
	OwnerID    string `json:"owner_id"`
	NotebookID string `json:"notebook_id,omitempty"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// createResponse reports the stored document.
type createResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

func (h *DocumentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.ingester.Ingest(r.Context(), ingest.Document{
		OwnerID:    req.OwnerID,
		NotebookID: req.NotebookID,
		Title:      req.Title,
		Text:       req.Text,
	})
	if err != nil {
		var verr *chunk.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		h.logger.Error("document ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingest_failed", "document ingestion failed")
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		DocumentID: result.DocumentID,
		Chunks:     result.Chunks,
	})
}

// deleteRequest is the JSON body for DELETE /api/documents.
type deleteRequest struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
}

// deleteResponse reports how many chunks were removed.
type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *DocumentHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.OwnerID == "" || req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "owner_id and document_id are required")
		return
	}

	deleted, err := h.ingester.Delete(r.Context(), req.OwnerID, req.DocumentID)
	if err != nil {
		h.logger.Error("document delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "document deletion failed")
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}
