package api

import (
	"bytes"
	"fmt"
	"net/http"
)

// sseWriter wraps an http.ResponseWriter for Server-Sent Events streaming.
//
// Not safe for concurrent writes: each SSE connection is served by a single
// goroutine, which matches how the query executor delivers events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter creates a new SSE writer and sets appropriate headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent writes one named event with a JSON payload and flushes.
// SSE requires each line of data to be prefixed with "data: ".
func (s *sseWriter) writeEvent(name string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}

	for _, line := range bytes.Split(data, []byte("\n")) {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}

	// Empty line terminates the event
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}

	s.flusher.Flush()
	return nil
}
