package query

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates the session deadline was exceeded. Terminal, never
// retried.
var ErrTimeout = errors.New("query session deadline exceeded")

// RetrievalError wraps a chunk store failure. The planner retries
// retrieval with backoff a bounded number of times before failing the
// session with this error.
type RetrievalError struct {
	Step int // 1-based step index
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at step %d: %v", e.Step, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError wraps an upstream model failure. The planner retries
// generation once before failing the session with this error.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ClassificationError wraps a classifier failure.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
