// Package gen wraps the answer-generating language model behind the
// Generator contract. From the core's perspective generation is a pure
// function from prompt + context to text; resilience (retry, circuit
// breaking, rate limiting) lives inside the adapter so callers see a
// single blocking call.
package gen

import "context"

// Generator produces natural-language output from a prompt and retrieved
// context. Implementations must be safe for concurrent use.
type Generator interface {
	// Generate returns the model's answer for the prompt. evidence is the
	// retrieved context, already ordered; the adapter decides how to lay
	// it out in the final prompt.
	Generate(ctx context.Context, prompt string, evidence []string) (string, error)
}

// Func adapts a plain function to the Generator interface, mirroring
// http.HandlerFunc. Used heavily in tests.
type Func func(ctx context.Context, prompt string, evidence []string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, evidence []string) (string, error) {
	return f(ctx, prompt, evidence)
}
