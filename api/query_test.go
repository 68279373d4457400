package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revisio/revisio/internal/testutil"
)

func TestQueryHandler_StreamsOrderedEvents(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells", "Mitosis is the process of cell division.")

	w := postJSON(t, env.server.Handler(), "/api/query/stream",
		`{"owner_id": "alice", "question": "What is mitosis?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := testutil.ParseSSEEvents(t, w.Body.String())
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		"detected",
		"step_start",
		"step_complete",
		"synthesis_start",
		"query_complete",
		"stream_complete",
	}, types)

	detected := testutil.FindEvent(events, "detected")
	require.NotNil(t, detected)

	var detectedPayload struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(detected.Data), &detectedPayload))
	assert.Equal(t, "single", detectedPayload.Kind)

	complete := testutil.FindEvent(events, "query_complete")
	require.NotNil(t, complete)

	var payload struct {
		Type       string `json:"type"`
		Answer     string `json:"answer"`
		TotalSteps int    `json:"total_steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(complete.Data), &payload))
	assert.Equal(t, "query_complete", payload.Type)
	assert.Equal(t, "the synthesized answer", payload.Answer)
	assert.Equal(t, 1, payload.TotalSteps)
}

func TestQueryHandler_MultiHopStream(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells",
		"Mitosis is the process of cell division. Meiosis produces gametes with half the chromosomes.")

	w := postJSON(t, env.server.Handler(), "/api/query/stream",
		`{"owner_id": "alice", "question": "What is mitosis and what is meiosis?"}`)

	require.Equal(t, http.StatusOK, w.Code)

	events := testutil.ParseSSEEvents(t, w.Body.String())

	detected := testutil.FindEvent(events, "detected")
	require.NotNil(t, detected)

	var payload struct {
		Kind             string `json:"kind"`
		SubQuestionCount int    `json:"sub_question_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(detected.Data), &payload))
	assert.Equal(t, "multi", payload.Kind)
	assert.Equal(t, 2, payload.SubQuestionCount)

	// One start/complete pair per sub-question, then exactly one terminal.
	starts := 0
	for _, ev := range events {
		if ev.Type == "step_start" {
			starts++
		}
	}
	assert.Equal(t, 2, starts)
	assert.Equal(t, "stream_complete", events[len(events)-1].Type)
}

func TestQueryHandler_EmptyRetrievalStillAnswers(t *testing.T) {
	env := newTestEnv(t)
	// No documents ingested: retrieval returns nothing above threshold.

	w := postJSON(t, env.server.Handler(), "/api/query/stream",
		`{"owner_id": "alice", "question": "What is mitosis?"}`)

	require.Equal(t, http.StatusOK, w.Code)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	assert.NotNil(t, testutil.FindEvent(events, "query_complete"))
	assert.Equal(t, "stream_complete", events[len(events)-1].Type)
}

func TestQueryHandler_GenerationFailureEmitsErrorEvent(t *testing.T) {
	env := newTestEnv(t)
	env.seedDocument(t, "alice", "", "Cells", "Mitosis is the process of cell division.")
	env.generator.Fail(assert.AnError).Fail(assert.AnError)

	w := postJSON(t, env.server.Handler(), "/api/query/stream",
		`{"owner_id": "alice", "question": "What is mitosis?"}`)

	require.Equal(t, http.StatusOK, w.Code)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, "error", last.Type)
	assert.Nil(t, testutil.FindEvent(events, "query_complete"))
	assert.Nil(t, testutil.FindEvent(events, "stream_complete"))
}

func TestQueryHandler_RejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing owner", `{"question": "What is mitosis?"}`},
		{"missing question", `{"owner_id": "alice"}`},
		{"malformed body", `{"owner_id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, env.server.Handler(), "/api/query/stream", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}
