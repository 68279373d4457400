package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/query"
	"github.com/revisio/revisio/internal/search"
	"github.com/revisio/revisio/internal/testutil"
)

const dim = 64

// fixture wires a planner over an in-memory store. Chunks are stored with
// content equal to the expected sub-questions, so the deterministic mock
// embedder retrieves them with similarity ~1.
type fixture struct {
	store     *chunk.MemoryStore
	embedder  *testutil.MockEmbedder
	generator *testutil.MockGenerator
	planner   *query.Planner
}

func newFixture(t *testing.T, cfg query.Config) *fixture {
	t.Helper()

	f := &fixture{
		store:     chunk.NewMemoryStore(dim, testutil.QuietLogger()),
		embedder:  testutil.NewMockEmbedder(dim),
		generator: testutil.NewMockGenerator("synthesized answer"),
	}
	engine := search.New(f.store, f.embedder, testutil.QuietLogger())
	f.planner = query.NewPlanner(engine, f.generator, nil, cfg, testutil.QuietLogger())
	return f
}

func (f *fixture) seed(t *testing.T, id, content string) {
	t.Helper()
	vec, err := f.embedder.Embed(context.Background(), content)
	if err != nil {
		t.Fatalf("embed seed: %v", err)
	}
	err = f.store.Put(context.Background(), chunk.Chunk{
		ID: id, OwnerID: "u1", Content: content, Embedding: vec,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func collectEvents() (*[]query.Event, func(query.Event)) {
	var events []query.Event
	return &events, func(ev query.Event) { events = append(events, ev) }
}

func eventTypes(events []query.Event) []query.EventType {
	types := make([]query.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.EventType()
	}
	return types
}

func TestPlanner_SingleHopFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, query.DefaultConfig())
	f.seed(t, "c1", "What is osmosis?")

	events, emit := collectEvents()
	outcome, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, emit)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if outcome.Answer != "synthesized answer" {
		t.Errorf("Answer = %q", outcome.Answer)
	}
	if outcome.Kind != query.SingleHop {
		t.Errorf("Kind = %v, want SingleHop", outcome.Kind)
	}
	if len(outcome.Steps) != 1 {
		t.Fatalf("Steps = %d, want 1", len(outcome.Steps))
	}
	if outcome.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1", outcome.TotalChunks)
	}

	want := []query.EventType{
		query.TypeDetected,
		query.TypeStepStart,
		query.TypeStepComplete,
		query.TypeSynthesisStart,
	}
	got := eventTypes(*events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPlanner_MultiHopStepsAreSequentialAndOrdered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, query.DefaultConfig())
	f.seed(t, "c1", "What is mitosis")
	f.seed(t, "c2", "how does it differ from meiosis?")

	events, emit := collectEvents()
	outcome, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is mitosis and how does it differ from meiosis?",
	}, emit)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if outcome.Kind != query.MultiHop {
		t.Fatalf("Kind = %v, want MultiHop", outcome.Kind)
	}
	if len(outcome.Steps) != 2 {
		t.Fatalf("Steps = %d, want 2", len(outcome.Steps))
	}

	// detected, (start, complete) per step in index order, synthesis.
	got := *events
	detected, ok := got[0].(query.Detected)
	if !ok || detected.Kind != "multi" || detected.SubQuestionCount != 2 {
		t.Fatalf("events[0] = %+v, want multi detected with 2 sub-questions", got[0])
	}

	stepIndex := 1
	for i := 1; i < len(got)-1; i += 2 {
		start, ok := got[i].(query.StepStart)
		if !ok || start.Index != stepIndex {
			t.Fatalf("events[%d] = %+v, want StepStart index %d", i, got[i], stepIndex)
		}
		complete, ok := got[i+1].(query.StepComplete)
		if !ok || complete.Index != stepIndex {
			t.Fatalf("events[%d] = %+v, want StepComplete index %d", i+1, got[i+1], stepIndex)
		}
		stepIndex++
	}
	if _, ok := got[len(got)-1].(query.SynthesisStart); !ok {
		t.Fatalf("last event = %+v, want SynthesisStart", got[len(got)-1])
	}

	// Evidence reaches synthesis in step order.
	evidence := f.generator.Evidence()
	if len(evidence) != 1 {
		t.Fatalf("generator called %d times, want 1", len(evidence))
	}
	if len(evidence[0]) < 2 || evidence[0][0] != "What is mitosis" {
		t.Errorf("evidence order wrong: %v", evidence[0])
	}
}

func TestPlanner_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, query.DefaultConfig())

	tests := []struct {
		name string
		req  query.Request
	}{
		{"empty question", query.Request{OwnerID: "u1"}},
		{"empty owner", query.Request{Question: "q?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.planner.Run(context.Background(), tt.req, nil)
			var verr *chunk.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Run() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestPlanner_EmptyRetrievalStillSynthesizes(t *testing.T) {
	t.Parallel()

	// No chunks stored: retrieval finds nothing, which is a valid outcome,
	// and synthesis runs with empty evidence.
	f := newFixture(t, query.DefaultConfig())

	outcome, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if outcome.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d, want 0", outcome.TotalChunks)
	}
	if outcome.Answer == "" {
		t.Error("empty retrieval must still produce an answer")
	}
}

func TestPlanner_RetrievalFailureAfterRetries(t *testing.T) {
	t.Parallel()

	cfg := query.DefaultConfig()
	cfg.RetrievalRetries = 2
	cfg.RetrievalBackoff = time.Millisecond
	f := newFixture(t, cfg)
	f.embedder.FailOn("What is osmosis?", errors.New("store down"))

	_, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)

	var rerr *query.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("Run() error = %v, want RetrievalError", err)
	}
	if rerr.Step != 1 {
		t.Errorf("RetrievalError.Step = %d, want 1", rerr.Step)
	}
	// Initial attempt plus two retries.
	if calls := f.embedder.Calls(); calls != 3 {
		t.Errorf("embedder called %d times, want 3", calls)
	}
}

func TestPlanner_ValidationErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	cfg := query.DefaultConfig()
	cfg.RetrievalRetries = 3
	cfg.RetrievalBackoff = time.Millisecond
	f := newFixture(t, cfg)

	// An owner-scoped request with a wrong-dimension store query cannot
	// happen through the engine, but a missing owner can: it must fail
	// fast without burning retries.
	_, err := f.planner.Run(context.Background(), query.Request{Question: "q?"}, nil)
	var verr *chunk.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if f.embedder.Calls() != 0 {
		t.Errorf("embedder called %d times for invalid request", f.embedder.Calls())
	}
}

func TestPlanner_GenerationRetriesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, query.DefaultConfig())
	f.generator.Fail(errors.New("transient upstream error")).Respond("recovered answer")

	outcome, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)
	if err != nil {
		t.Fatalf("Run() failed after retryable generation error: %v", err)
	}
	if outcome.Answer != "recovered answer" {
		t.Errorf("Answer = %q, want recovered answer", outcome.Answer)
	}
}

func TestPlanner_ZeroGenerationRetriesIsHonored(t *testing.T) {
	t.Parallel()

	cfg := query.DefaultConfig()
	cfg.GenerationRetries = 0
	f := newFixture(t, cfg)
	f.generator.Fail(errors.New("transient upstream error")).Respond("recovered answer")

	_, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)

	var gerr *query.GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("Run() error = %v, want GenerationError after a single attempt", err)
	}
	if prompts := len(f.generator.Prompts()); prompts != 1 {
		t.Errorf("generator called %d times, want exactly 1", prompts)
	}
}

func TestPlanner_ZeroThresholdIsHonored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	question := "What is osmosis?"

	cfg := query.DefaultConfig()
	cfg.MinSimilarity = 0
	f := newFixture(t, cfg)

	// A chunk at cosine 0.2 to the question: below the standard cutoff
	// but above zero.
	qvec, err := f.embedder.Embed(ctx, question)
	if err != nil {
		t.Fatalf("embed question: %v", err)
	}
	err = f.store.Put(ctx, chunk.Chunk{
		ID:        "weak",
		OwnerID:   "u1",
		Content:   "loosely related notes",
		Embedding: testutil.VectorAt(qvec, 0.2),
	})
	if err != nil {
		t.Fatalf("put weak chunk: %v", err)
	}

	outcome, err := f.planner.Run(ctx, query.Request{OwnerID: "u1", Question: question}, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if outcome.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1 with no similarity floor", outcome.TotalChunks)
	}
}

func TestPlanner_GenerationFailureAfterRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, query.DefaultConfig())
	f.generator.Fail(errors.New("down")).Fail(errors.New("still down"))

	_, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)

	var gerr *query.GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("Run() error = %v, want GenerationError", err)
	}
}

func TestPlanner_SessionTimeout(t *testing.T) {
	t.Parallel()

	cfg := query.DefaultConfig()
	cfg.SessionTimeout = time.Nanosecond
	f := newFixture(t, cfg)

	_, err := f.planner.Run(context.Background(), query.Request{
		OwnerID:  "u1",
		Question: "What is osmosis?",
	}, nil)

	if !errors.Is(err, query.ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
}
