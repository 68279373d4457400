package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/revisio/revisio/internal/gen"
)

// Kind distinguishes single-hop from multi-hop questions.
type Kind int

const (
	// SingleHop questions are answerable from one retrieval step.
	SingleHop Kind = iota
	// MultiHop questions need evidence from several independent
	// retrieval steps before synthesis.
	MultiHop
)

// String returns the wire representation of the kind.
func (k Kind) String() string {
	if k == MultiHop {
		return "multi"
	}
	return "single"
}

// MaxSubQuestions caps decomposition to bound latency and cost.
const MaxSubQuestions = 5

// Classification is the closed result of classifying a question:
// either SingleHop with no sub-questions, or MultiHop with an ordered
// list of at least two.
type Classification struct {
	Kind         Kind
	SubQuestions []string // populated only for MultiHop, len >= 2
}

// Classifier decides whether a question needs multi-hop treatment.
// The policy is injected from outside the orchestrator; implementations
// range from pure rule sets to LLM-backed decomposers.
type Classifier interface {
	Classify(ctx context.Context, question string) (Classification, error)
}

// connectorPattern marks questions that chain or compare independent
// sub-topics: comparison/causal connectors and multi-clause phrasing.
var connectorPattern = regexp.MustCompile(`(?i)( and | then | as well as | in addition to |, |; | after | before | because | so that | affect | relationship | both | compare | contrast )`)

// splitterPattern is the subset of connectors a question is decomposed on.
var splitterPattern = regexp.MustCompile(`(?i) and | then | as well as | in addition to |, |; | after | before | because | so that `)

var questionWords = []string{"how", "what", "why", "when"}

// HeuristicClassifier detects multi-hop questions with a rule set and
// decomposes them by splitting on connectors. It never returns an error,
// which makes it the fallback of choice when the LLM path is unavailable.
type HeuristicClassifier struct{}

// Classify applies the rule set: multiple question marks, connector
// words, or a comma next to a question word all indicate multi-hop.
func (HeuristicClassifier) Classify(_ context.Context, question string) (Classification, error) {
	if !looksMultiHop(question) {
		return Classification{Kind: SingleHop}, nil
	}

	subs := splitQuestion(question)
	if len(subs) < 2 {
		// Detected as multi-hop but not cleanly splittable; degrade to
		// a single retrieval over the full question.
		return Classification{Kind: SingleHop}, nil
	}
	if len(subs) > MaxSubQuestions {
		subs = subs[:MaxSubQuestions]
	}
	return Classification{Kind: MultiHop, SubQuestions: subs}, nil
}

func looksMultiHop(question string) bool {
	if strings.Count(question, "?") > 1 {
		return true
	}
	if connectorPattern.MatchString(question) {
		return true
	}
	if strings.Contains(question, ",") {
		lower := strings.ToLower(question)
		for _, w := range questionWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

func splitQuestion(question string) []string {
	parts := splitterPattern.Split(question, -1)
	subs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			subs = append(subs, p)
		}
	}
	return subs
}

// LLMClassifier layers model-based decomposition on top of the heuristic
// rules: the heuristic decides whether a question is multi-hop, and when
// its split is too coarse the model produces the sub-question list.
// Model failures degrade to single-hop rather than failing the session,
// matching the behavior callers rely on for flaky upstreams.
type LLMClassifier struct {
	generator gen.Generator
	logger    *slog.Logger
	heuristic HeuristicClassifier
}

// NewLLMClassifier creates a classifier that uses generator for
// decomposition.
func NewLLMClassifier(generator gen.Generator, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{generator: generator, logger: logger}
}

// Classify returns the heuristic result, upgraded with an LLM
// decomposition when the heuristic detects multi-hop but cannot split.
func (c *LLMClassifier) Classify(ctx context.Context, question string) (Classification, error) {
	if !looksMultiHop(question) {
		return Classification{Kind: SingleHop}, nil
	}

	if subs := splitQuestion(question); len(subs) >= 2 {
		if len(subs) > MaxSubQuestions {
			subs = subs[:MaxSubQuestions]
		}
		return Classification{Kind: MultiHop, SubQuestions: subs}, nil
	}

	subs, err := c.decompose(ctx, question)
	if err != nil || len(subs) < 2 {
		if err != nil {
			c.logger.Warn("llm decomposition failed, using single-hop", "error", err)
		}
		return Classification{Kind: SingleHop}, nil
	}
	if len(subs) > MaxSubQuestions {
		subs = subs[:MaxSubQuestions]
	}
	return Classification{Kind: MultiHop, SubQuestions: subs}, nil
}

// decompose asks the model for a numbered list of simpler sub-questions.
func (c *LLMClassifier) decompose(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Decompose the following question into a list of simpler sub-questions needed to answer it. "+
			"Return only a numbered list, one sub-question per line.\n\nQuestion: %s\n\nList:", question)

	text, err := c.generator.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return parseNumberedList(text), nil
}

var numberingPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

// parseNumberedList extracts one sub-question per non-empty line,
// stripping list numbering.
func parseNumberedList(text string) []string {
	var subs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), " .")
		line = numberingPrefix.ReplaceAllString(line, "")
		if line != "" {
			subs = append(subs, line)
		}
	}
	return subs
}
