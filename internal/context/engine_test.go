package context

import (
	"encoding/json"
	"testing"

	"github.com/user/gopherlog/internal/types"
)

func TestNewEngine(t *testing.T) {
	e, err := New("gpt-4", 128000)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("expected non-nil engine")
	}
	if e.MaxTokens() != 128000 {
		t.Errorf("expected max tokens 128000, got %d", e.MaxTokens())
	}
}

func TestNewEngineUnknownModel(t *testing.T) {
	if _, err := New("some-unreleased-model", 8000); err != nil {
		t.Fatalf("expected fallback encoding, got %v", err)
	}
}

func TestCountHistory(t *testing.T) {
	e, err := New("gpt-4", 1000)
	if err != nil {
		t.Fatal(err)
	}

	if got := e.CountHistory(nil); got != 0 {
		t.Errorf("expected 0 tokens for empty history, got %d", got)
	}

	short := []types.Message{types.UserMessage("hello")}
	long := []types.Message{
		types.UserMessage("hello"),
		types.AssistantMessage("hi there, how can I help you today?"),
		{Role: types.RoleAssistant, Content: types.PlainText(""), ToolCalls: json.RawMessage(`[{"id":"1","function":{"name":"bash"}}]`)},
	}
	shortCount := e.CountHistory(short)
	longCount := e.CountHistory(long)
	if shortCount <= tokensPerMessage {
		t.Errorf("expected content tokens to be counted, got %d", shortCount)
	}
	if longCount <= shortCount {
		t.Errorf("expected longer history to cost more: %d <= %d", longCount, shortCount)
	}

	if usage := e.Usage(long); usage <= 0 || usage >= 1 {
		t.Errorf("expected usage in (0, 1), got %f", usage)
	}
	if e.Remaining(long) != 1000-longCount {
		t.Errorf("expected remaining %d, got %d", 1000-longCount, e.Remaining(long))
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	e, err := New("gpt-4", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Remaining([]types.Message{types.UserMessage("this will not fit")}); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}
