// Package llm is the minimal chat-completion surface the shell needs to
// summarize a session.
package llm

import (
	"context"
	"fmt"

	"github.com/user/gopherlog/internal/types"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Provider sends a conversation to a model and returns its reply.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// Config holds the connection settings of a provider.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// FromHistory converts a session history to provider messages. Content parts
// that are not text are dropped and messages left without text are skipped.
func FromHistory(history []types.Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		text := m.Content.String()
		if text == "" {
			continue
		}
		out = append(out, Message{Role: string(m.Role), Content: text})
	}
	return out
}
