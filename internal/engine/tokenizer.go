// Package engine provides the shared types of the context engine.
// This file contains token counting interfaces and implementations.

package engine

import (
	"context"
	"fmt"
	"strings"
)

// Tokenizer provides token counting for text.
// Different models use different tokenization schemes, so the model name is required.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text for the specified model.
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses a simple heuristic: ~4 characters per token for English/code.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))

	// Whitespace-heavy text has fewer tokens per character
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)

	// Minimum of 1 token for non-empty text
	if estimated < 1 {
		return 1
	}

	return estimated
}

// DefaultTokenizer uses estimation as a fallback when no specific tokenizer is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (t DefaultTokenizer) CountTokens(text string, model string) (int, error) {
	return EstimateTokens(text), nil
}

// CountTokensForMessages counts tokens for a slice of messages.
// It includes formatting overhead (role names, separators) in the count.
func CountTokensForMessages(tokenizer Tokenizer, messages []ChatMessage, model string) (int, error) {
	total := 0

	for _, msg := range messages {
		roleTokens, err := tokenizer.CountTokens(string(msg.Role), model)
		if err != nil {
			return 0, fmt.Errorf("failed to count role tokens: %w", err)
		}
		total += roleTokens

		contentTokens, err := tokenizer.CountTokens(msg.Content, model)
		if err != nil {
			return 0, fmt.Errorf("failed to count content tokens: %w", err)
		}
		total += contentTokens

		// Approximately 4 tokens of framing per message
		total += 4
	}

	return total, nil
}

// GetTokenizerForModel returns an appropriate tokenizer for the given model.
// Every model currently uses estimation.
func GetTokenizerForModel(model string) Tokenizer {
	return DefaultTokenizer{}
}

// EstimatingCounter adapts a Tokenizer to the TokenCounter oracle.
type EstimatingCounter struct {
	Tokenizer Tokenizer
	Model     string
}

// NewEstimatingCounter returns a TokenCounter backed by the tokenizer for model.
func NewEstimatingCounter(model string) EstimatingCounter {
	return EstimatingCounter{Tokenizer: GetTokenizerForModel(model), Model: model}
}

// CountTokens implements TokenCounter.
func (c EstimatingCounter) CountTokens(ctx context.Context, messages []ChatMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tk := c.Tokenizer
	if tk == nil {
		tk = DefaultTokenizer{}
	}
	return CountTokensForMessages(tk, messages, c.Model)
}
