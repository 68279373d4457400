package query

import (
	"context"
	"log/slog"
	"time"
)

// Record is what the executor hands to the optional session recorder
// after a successful query.
type Record struct {
	OwnerID    string
	NotebookID string
	Question   string
	Answer     string
	Kind       Kind
	Steps      int
	Chunks     int
	Duration   time.Duration
}

// Recorder persists completed sessions. Implementations must tolerate
// being called from the executor goroutine; a recording failure is logged
// and never affects the stream.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Executor drives the planner and pushes its ordered progress events to a
// single logical subscriber per session.
//
// Event ordering per session:
//
//	detected -> (step_start, step_complete)* -> synthesis_start
//	  -> query_complete -> stream_complete        (success)
//	any prefix -> error                           (failure)
//
// Exactly one of query_complete or error is emitted, and the channel is
// closed afterwards. When the subscriber cancels the context, no further
// retrieval or generation calls are started and the stream ends without a
// terminal event (the subscriber is gone).
type Executor struct {
	planner  *Planner
	recorder Recorder // optional
	logger   *slog.Logger
}

// NewExecutor wraps a planner. recorder may be nil.
func NewExecutor(planner *Planner, recorder Recorder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{planner: planner, recorder: recorder, logger: logger}
}

// Execute starts the session and returns its event channel. The channel
// is closed when the session ends for any reason.
func (e *Executor) Execute(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		outcome, err := e.planner.Run(ctx, req, func(ev Event) { send(ev) })
		if err != nil {
			if ctx.Err() != nil {
				// Subscriber canceled; nobody is listening for a
				// terminal event.
				e.logger.Debug("session canceled by subscriber", "owner", req.OwnerID)
				return
			}
			send(Error{Message: err.Error()})
			return
		}

		if !send(QueryComplete{
			Answer:      outcome.Answer,
			TotalSteps:  len(outcome.Steps),
			TotalChunks: outcome.TotalChunks,
		}) {
			return
		}
		send(StreamComplete{})

		if e.recorder != nil {
			// Recording runs after the terminal event so a slow history
			// store never delays the subscriber.
			rec := Record{
				OwnerID:    req.OwnerID,
				NotebookID: req.NotebookID,
				Question:   req.Question,
				Answer:     outcome.Answer,
				Kind:       outcome.Kind,
				Steps:      len(outcome.Steps),
				Chunks:     outcome.TotalChunks,
				Duration:   outcome.Duration,
			}
			if err := e.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
				e.logger.Warn("failed to record session", "error", err)
			}
		}
	}()

	return events
}
