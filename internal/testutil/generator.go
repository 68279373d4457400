package testutil

import (
	"context"
	"sync"
)

// MockGenerator is a scripted Generator for tests. Each call pops the next
// scripted response (or error); when the script runs out, Answer is
// returned for every further call.
type MockGenerator struct {
	// Answer is the default response once the script is exhausted.
	Answer string

	mu       sync.Mutex
	script   []scripted
	prompts  []string
	evidence [][]string
}

type scripted struct {
	text string
	err  error
}

// NewMockGenerator creates a generator that always answers with answer.
func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{Answer: answer}
}

// Respond appends a scripted response.
func (m *MockGenerator) Respond(text string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{text: text})
	return m
}

// Fail appends a scripted error.
func (m *MockGenerator) Fail(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Generate implements gen.Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, evidence []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.evidence = append(m.evidence, evidence)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.err != nil {
			return "", next.err
		}
		return next.text, nil
	}
	return m.Answer, nil
}

// Prompts returns every prompt seen so far, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Evidence returns the evidence slices passed to each call, in call order.
func (m *MockGenerator) Evidence() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.evidence))
	copy(out, m.evidence)
	return out
}
