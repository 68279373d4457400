// Package query implements the query planner: classification of incoming
// questions as single-hop or multi-hop, the state machine that executes
// retrieval steps strictly in order, answer synthesis, and the streaming
// executor that pushes ordered progress events to the caller.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/embed"
	"github.com/revisio/revisio/internal/gen"
	"github.com/revisio/revisio/internal/search"
)

// State is the generation state of a query session.
type State int

const (
	StateDetecting State = iota
	StateRetrieving
	StateSynthesizing
	StateComplete
	StateFailed
)

// String returns a readable state name for logs.
func (s State) String() string {
	switch s {
	case StateDetecting:
		return "detecting"
	case StateRetrieving:
		return "retrieving"
	case StateSynthesizing:
		return "synthesizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes one query session.
type Request struct {
	OwnerID       string
	NotebookID    string
	Question      string
	K             int     // per-step retrieval size; 0 = the configured Config.K
	MinSimilarity float32 // 0 = the configured Config.MinSimilarity
}

// Step records one completed retrieval step.
type Step struct {
	Index       int    `json:"index"` // 1-based
	SubQuestion string `json:"sub_question"`
	ChunksFound int    `json:"chunks_found"`
}

// Outcome is the final result of a successful session.
type Outcome struct {
	Answer      string
	Kind        Kind
	Steps       []Step
	TotalChunks int
	Duration    time.Duration
}

// Config tunes the planner. Callers start from DefaultConfig and override
// what they need: every field is taken at face value, so a zero
// MinSimilarity is a real no-floor threshold and a zero GenerationRetries
// means a single generation attempt.
type Config struct {
	K                 int           // retrieval size per step
	MinSimilarity     float32       // similarity floor passed to the engine
	SessionTimeout    time.Duration // overall deadline
	RetrievalRetries  int           // attempts per retrieval beyond the first
	RetrievalBackoff  time.Duration // initial retrieval backoff, doubled per attempt
	GenerationRetries int           // attempts per generation beyond the first
}

// DefaultConfig returns the baseline planner tuning.
func DefaultConfig() Config {
	return Config{
		K:                 3,
		MinSimilarity:     chunk.DefaultMinSimilarity,
		SessionTimeout:    2 * time.Minute,
		RetrievalRetries:  2,
		RetrievalBackoff:  250 * time.Millisecond,
		GenerationRetries: 1,
	}
}

// normalized clamps values a planner cannot run with. Fields where zero
// is a meaningful setting pass through untouched.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.K <= 0 {
		c.K = def.K
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = def.SessionTimeout
	}
	if c.RetrievalRetries < 0 {
		c.RetrievalRetries = 0
	}
	if c.RetrievalBackoff <= 0 {
		c.RetrievalBackoff = def.RetrievalBackoff
	}
	if c.GenerationRetries < 0 {
		c.GenerationRetries = 0
	}
	return c
}

// Planner drives a query session through its state machine:
//
//	DETECTING -> STEP(1) .. STEP(n) -> SYNTHESIZING -> COMPLETE | FAILED
//
// Steps execute strictly sequentially: step i+1 never starts before step
// i's retrieval completes. Later steps may depend on accumulated context,
// and parallel steps would break the deterministic tie-breaking of
// results, so this ordering is a correctness property rather than an
// optimization opportunity.
type Planner struct {
	engine     *search.Engine
	generator  gen.Generator
	classifier Classifier
	cfg        Config
	logger     *slog.Logger
}

// NewPlanner creates a planner. classifier may be nil, which selects the
// pure heuristic rules.
func NewPlanner(engine *search.Engine, generator gen.Generator, classifier Classifier, cfg Config, logger *slog.Logger) *Planner {
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		engine:     engine,
		generator:  generator,
		classifier: classifier,
		cfg:        cfg.normalized(),
		logger:     logger,
	}
}

// Run executes the session, invoking emit for each progress event in
// order. Terminal events (query_complete, error, stream_complete) are the
// executor's responsibility. On failure the partial evidence gathered so
// far is discarded; callers receive either a complete synthesized answer
// or an error, never a partial one.
func (p *Planner) Run(ctx context.Context, req Request, emit func(Event)) (Outcome, error) {
	if req.Question == "" {
		return Outcome{}, &chunk.ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if req.OwnerID == "" {
		return Outcome{}, &chunk.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if emit == nil {
		emit = func(Event) {}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SessionTimeout)
	defer cancel()

	start := time.Now()

	state := StateDetecting
	cls, err := p.classifier.Classify(ctx, req.Question)
	if err != nil {
		return Outcome{}, p.fail(ctx, state, &ClassificationError{Err: err})
	}

	subQuestions := []string{req.Question}
	if cls.Kind == MultiHop {
		subQuestions = cls.SubQuestions
	}

	detected := Detected{Kind: cls.Kind.String()}
	if cls.Kind == MultiHop {
		detected.SubQuestionCount = len(subQuestions)
	}
	emit(detected)

	p.logger.Info("question classified",
		"kind", cls.Kind.String(),
		"sub_questions", len(subQuestions),
		"owner", req.OwnerID,
	)

	state = StateRetrieving
	var (
		steps       []Step
		evidence    []string
		totalChunks int
	)
	for i, sub := range subQuestions {
		// No new step starts once the session is canceled or timed out.
		if err := ctx.Err(); err != nil {
			return Outcome{}, p.fail(ctx, state, err)
		}

		index := i + 1
		emit(StepStart{Index: index, SubQuestion: sub})

		results, err := p.retrieve(ctx, req, sub, index)
		if err != nil {
			return Outcome{}, p.fail(ctx, state, err)
		}

		for _, r := range results {
			evidence = append(evidence, r.Chunk.Content)
		}
		totalChunks += len(results)
		steps = append(steps, Step{Index: index, SubQuestion: sub, ChunksFound: len(results)})

		emit(StepComplete{Index: index, ChunksFound: len(results)})
	}

	state = StateSynthesizing
	emit(SynthesisStart{})

	answer, err := p.synthesize(ctx, req.Question, evidence)
	if err != nil {
		return Outcome{}, p.fail(ctx, state, err)
	}

	outcome := Outcome{
		Answer:      answer,
		Kind:        cls.Kind,
		Steps:       steps,
		TotalChunks: totalChunks,
		Duration:    time.Since(start),
	}
	p.logger.Info("query session complete",
		"kind", cls.Kind.String(),
		"steps", len(steps),
		"chunks", totalChunks,
		"duration", outcome.Duration,
	)
	return outcome, nil
}

// retrieve runs one similarity search with bounded retries. Validation
// and dimension errors are configuration bugs and surface immediately;
// store unavailability is retried with backoff.
func (p *Planner) retrieve(ctx context.Context, req Request, sub string, index int) ([]chunk.Result, error) {
	searchReq := search.Request{
		OwnerID:       req.OwnerID,
		NotebookID:    req.NotebookID,
		Query:         sub,
		K:             orDefault(req.K, p.cfg.K),
		MinSimilarity: orDefaultF(req.MinSimilarity, p.cfg.MinSimilarity),
	}

	var lastErr error
	delay := p.cfg.RetrievalBackoff
	for attempt := 0; attempt <= p.cfg.RetrievalRetries; attempt++ {
		results, err := p.engine.Search(ctx, searchReq)
		if err == nil {
			return results, nil
		}
		lastErr = err

		var vErr *chunk.ValidationError
		var dErr *embed.DimensionError
		if errors.As(err, &vErr) || errors.As(err, &dErr) {
			return nil, err
		}
		if ctx.Err() != nil || attempt == p.cfg.RetrievalRetries {
			break
		}

		p.logger.Warn("retrieval attempt failed, retrying",
			"step", index,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &RetrievalError{Step: index, Err: lastErr}
		case <-timer.C:
		}
		delay *= 2
	}
	return nil, &RetrievalError{Step: index, Err: lastErr}
}

// synthesize produces the final answer from the original question and the
// full accumulated evidence, retrying upstream failures within the
// configured budget.
func (p *Planner) synthesize(ctx context.Context, question string, evidence []string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.GenerationRetries; attempt++ {
		answer, err := p.generator.Generate(ctx, question, evidence)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &GenerationError{Err: lastErr}
}

// fail maps a terminal error to the taxonomy, preferring the timeout
// classification when the session deadline was the root cause.
func (p *Planner) fail(ctx context.Context, state State, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	p.logger.Error("query session failed", "state", state.String(), "error", err)
	return err
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultF(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
