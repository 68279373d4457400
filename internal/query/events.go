package query

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates streamed progress events. Consumers must
// ignore types they do not recognize so the set can grow.
type EventType string

const (
	TypeDetected       EventType = "detected"
	TypeStepStart      EventType = "step_start"
	TypeStepComplete   EventType = "step_complete"
	TypeSynthesisStart EventType = "synthesis_start"
	TypeQueryComplete  EventType = "query_complete"
	TypeStreamComplete EventType = "stream_complete"
	TypeError          EventType = "error"
)

// Event is the closed set of progress events a query session emits.
// Each variant carries only the fields relevant to its kind; Marshal
// renders any variant as a self-contained JSON object with a "type"
// discriminator field.
type Event interface {
	EventType() EventType
}

// Detected is emitted once after classification.
type Detected struct {
	Kind             string `json:"kind"` // "single" | "multi"
	SubQuestionCount int    `json:"sub_question_count,omitempty"`
}

func (Detected) EventType() EventType { return TypeDetected }

// StepStart marks the beginning of one retrieval step.
type StepStart struct {
	Index       int    `json:"index"` // 1-based
	SubQuestion string `json:"sub_question"`
}

func (StepStart) EventType() EventType { return TypeStepStart }

// StepComplete marks the end of one retrieval step.
type StepComplete struct {
	Index       int `json:"index"`
	ChunksFound int `json:"chunks_found"`
}

func (StepComplete) EventType() EventType { return TypeStepComplete }

// SynthesisStart marks the final generation call.
type SynthesisStart struct{}

func (SynthesisStart) EventType() EventType { return TypeSynthesisStart }

// QueryComplete carries the full final answer. Exactly one is emitted per
// successful session; token-level streaming is the generator's concern,
// not this layer's.
type QueryComplete struct {
	Answer      string `json:"answer"`
	TotalSteps  int    `json:"total_steps"`
	TotalChunks int    `json:"total_chunks"`
}

func (QueryComplete) EventType() EventType { return TypeQueryComplete }

// StreamComplete closes a successful stream.
type StreamComplete struct{}

func (StreamComplete) EventType() EventType { return TypeStreamComplete }

// Error terminates the stream on failure; no further events follow.
type Error struct {
	Message string `json:"message"`
}

func (Error) EventType() EventType { return TypeError }

// Marshal renders an event as a JSON object with its "type" field.
// The switch is exhaustive over the closed variant set.
func Marshal(e Event) ([]byte, error) {
	switch v := e.(type) {
	case Detected:
		return marshalWithType(TypeDetected, v)
	case StepStart:
		return marshalWithType(TypeStepStart, v)
	case StepComplete:
		return marshalWithType(TypeStepComplete, v)
	case SynthesisStart:
		return marshalWithType(TypeSynthesisStart, v)
	case QueryComplete:
		return marshalWithType(TypeQueryComplete, v)
	case StreamComplete:
		return marshalWithType(TypeStreamComplete, v)
	case Error:
		return marshalWithType(TypeError, v)
	default:
		return nil, fmt.Errorf("unknown event type %T", e)
	}
}

func marshalWithType(t EventType, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", t))
	return json.Marshal(fields)
}
