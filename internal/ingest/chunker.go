// Package ingest turns raw document text into embedded chunks in the
// store. Flow: document -> sentence chunks under a token budget ->
// embeddings -> chunk store. Deleting a document cascades to its chunks.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxTokens is the per-chunk token budget. Token counts are
// approximated at four characters per token, which tracks the cl100k-style
// tokenizers closely enough for chunk sizing.
const DefaultMaxTokens = 500

// approxTokens estimates the token count of text.
func approxTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Chunker splits document text into sentence-aligned pieces that each
// stay under a token budget.
type Chunker struct {
	maxTokens int
}

// NewChunker creates a chunker; maxTokens <= 0 uses DefaultMaxTokens.
func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Chunker{maxTokens: maxTokens}
}

// Split breaks text into chunks. Sentences accumulate into a buffer that
// flushes whenever it reaches the token budget, so chunks end on sentence
// boundaries except when a single sentence alone exceeds the budget.
func (c *Chunker) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	for _, s := range sentences {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
		if approxTokens(buf.String()) >= c.maxTokens {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(buf.String()))
	}
	return chunks
}

// splitSentences breaks text on sentence-terminating punctuation,
// collapsing newlines first so hard-wrapped sources chunk the same as
// flowing text.
func splitSentences(text string) []string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i, r := range flat {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Only split when punctuation ends a word.
		if i+1 < len(flat) && flat[i+1] != ' ' {
			continue
		}
		s := strings.TrimSpace(flat[start : i+1])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(flat[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
