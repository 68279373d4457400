package api

import (
	"encoding/json"
	"net/http"

	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/reembed"
)

// ReembedHandler triggers embedding migration passes.
type ReembedHandler struct {
	migrator *reembed.Migrator
	logger   log.Logger
}

// NewReembedHandler creates a new re-embedding handler.
func NewReembedHandler(migrator *reembed.Migrator, logger log.Logger) *ReembedHandler {
	return &ReembedHandler{migrator: migrator, logger: logger}
}

// RegisterRoutes registers re-embedding routes on the given mux.
func (h *ReembedHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/reembed", h.run)
}

// reembedRequest is the JSON body for POST /api/reembed. An empty owner_id
// runs the migration across every owner; an empty notebook_id across every
// notebook.
type reembedRequest struct {
	OwnerID    string `json:"owner_id"`
	NotebookID string `json:"notebook_id,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// reembedFailure is one chunk that could not be migrated.
type reembedFailure struct {
	ChunkID string `json:"chunk_id"`
	Message string `json:"message"`
}

// reembedResponse summarizes a migration pass.
type reembedResponse struct {
	Scanned        int64            `json:"scanned"`
	NeedsMigration int              `json:"needs_migration"`
	Migrated       int              `json:"migrated"`
	Failed         []reembedFailure `json:"failed,omitempty"`
	DryRun         bool             `json:"dry_run"`
}

func (h *ReembedHandler) run(w http.ResponseWriter, r *http.Request) {
	var req reembedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	report, err := h.migrator.Run(r.Context(), reembed.Options{
		OwnerID:    req.OwnerID,
		NotebookID: req.NotebookID,
		BatchSize:  req.BatchSize,
		DryRun:     req.DryRun,
	})
	if err != nil {
		h.logger.Error("embedding migration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "migration_failed", "embedding migration failed")
		return
	}

	resp := reembedResponse{
		Scanned:        report.Scanned,
		NeedsMigration: report.NeedsMigration,
		Migrated:       report.Migrated,
		DryRun:         req.DryRun,
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, reembedFailure{ChunkID: f.ChunkID, Message: f.Message})
	}
	writeJSON(w, http.StatusOK, resp)
}
