// internal/context/engine.go
package context

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/gopherlog/internal/types"
)

// Per-message framing overhead and reply priming, as counted for chat models.
const (
	tokensPerMessage = 4
	tokensPerReply   = 3
)

// Engine measures how much of a model's context window a history fills.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// New creates an engine for model with a context window of maxTokens.
// Unknown models fall back to the cl100k_base encoding.
func New(model string, maxTokens int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
	}, nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

func (e *Engine) MaxTokens() int {
	return e.maxTokens
}

// CountHistory returns the number of tokens history would occupy as a prompt.
func (e *Engine) CountHistory(history []types.Message) int {
	if len(history) == 0 {
		return 0
	}
	total := tokensPerReply
	for _, msg := range history {
		total += tokensPerMessage
		total += e.countTokens(string(msg.Role))
		total += e.countTokens(msg.Content.String())
		if len(msg.ToolCalls) > 0 {
			total += e.countTokens(string(msg.ToolCalls))
		}
	}
	return total
}

// Usage returns the fraction of the context window filled by history.
func (e *Engine) Usage(history []types.Message) float64 {
	if e.maxTokens <= 0 {
		return 0
	}
	return float64(e.CountHistory(history)) / float64(e.maxTokens)
}

// Remaining returns the tokens left in the context window, never negative.
func (e *Engine) Remaining(history []types.Message) int {
	left := e.maxTokens - e.CountHistory(history)
	if left < 0 {
		return 0
	}
	return left
}
