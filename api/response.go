package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON encodes data as the JSON response body under the given status.
// An encode failure can only be logged: the status line has already gone
// out by the time Encode runs, so the client sees a truncated body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON shape of every error the API returns: a stable
// machine-readable code plus an optional human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError sends an ErrorResponse with the given code and message.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}
