package gen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// GenkitGenerator implements Generator on a Genkit model with the
// resilience stack applied in order: rate limiter, circuit breaker,
// retry with exponential backoff.
type GenkitGenerator struct {
	g           *genkit.Genkit
	model       ai.ModelRef
	retryConfig RetryConfig
	breaker     *CircuitBreaker
	limiter     *rate.Limiter // nil = no proactive rate limiting
	logger      *slog.Logger
}

// GenkitConfig configures a GenkitGenerator. Zero values use defaults.
type GenkitConfig struct {
	Genkit         *genkit.Genkit
	Model          ai.ModelRef
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    *rate.Limiter
	Logger         *slog.Logger
}

// NewGenkitGenerator creates a generator backed by the configured model.
func NewGenkitGenerator(cfg GenkitConfig) *GenkitGenerator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialInterval == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &GenkitGenerator{
		g:           cfg.Genkit,
		model:       cfg.Model,
		retryConfig: cfg.Retry,
		breaker:     NewCircuitBreaker(cfg.CircuitBreaker),
		limiter:     cfg.RateLimiter,
		logger:      cfg.Logger,
	}
}

// Generate produces the answer text for the prompt with the accumulated
// evidence laid out as a context block above the question.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string, evidence []string) (string, error) {
	full := buildPrompt(prompt, evidence)

	resp, err := gg.executeWithRetry(ctx, full)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// executeWithRetry runs one model call per attempt with exponential
// backoff, rate limiting each attempt and reporting outcomes to the
// circuit breaker.
func (gg *GenkitGenerator) executeWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	var lastErr error
	delay := gg.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= gg.retryConfig.MaxRetries; attempt++ {
		if gg.limiter != nil {
			if err := gg.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		if err := gg.breaker.Allow(); err != nil {
			return nil, err
		}

		resp, err := genkit.Generate(ctx, gg.g,
			ai.WithModel(gg.model),
			ai.WithPrompt(prompt),
		)
		if err == nil {
			gg.breaker.Success()
			gg.logger.Debug("generate succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		gg.breaker.Failure()
		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == gg.retryConfig.MaxRetries {
			break
		}

		gg.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := backoff(ctx, delay); err != nil {
			return nil, err
		}
		delay = nextDelay(delay, gg.retryConfig.MaxInterval)
	}

	return nil, fmt.Errorf("generate failed after %d attempts: %w", gg.retryConfig.MaxRetries+1, lastErr)
}

// buildPrompt lays out evidence blocks above the question, in step order.
func buildPrompt(prompt string, evidence []string) string {
	if len(evidence) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("Use the following context to answer the question.\n\n")
	for i, ev := range evidence {
		fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, ev)
	}
	b.WriteString("Question: ")
	b.WriteString(prompt)
	return b.String()
}
