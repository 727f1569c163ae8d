// Package compact shrinks a session log by replacing the turns before its
// latest checkpoint with a model-written summary.
package compact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/gopherlog/internal/metacmd"
	"github.com/user/gopherlog/internal/state"
	"github.com/user/gopherlog/internal/types"
	"github.com/user/gopherlog/pkg/llm"
)

const (
	systemPrompt = "You compress conversations between a user and a coding agent. " +
		"Keep decisions, file names, commands, open problems and the user's goals. Drop small talk."
	instruction = "Summarize the conversation above so the agent can continue from the summary alone."
	summaryLead = "Previous context has been compacted. Here is the compaction output:"
)

var _ metacmd.Soul = (*Compactor)(nil)

type Compactor struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Compactor {
	return &Compactor{provider: provider}
}

// Compact summarizes everything before the latest checkpoint. The log is
// reverted to its start and rebuilt as summary, checkpoint, then the turn
// that followed the latest checkpoint.
func (c *Compactor) Compact(ctx context.Context, log *state.SessionLog) error {
	entries := log.Entries()
	last := -1
	for i, e := range entries {
		if e.IsCheckpoint() {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	head := messages(entries[:last])
	if len(head) == 0 {
		slog.Debug("nothing to compact", "path", log.Path())
		return nil
	}
	tail := messages(entries[last+1:])

	prompt := append([]llm.Message{{Role: "system", Content: systemPrompt}}, llm.FromHistory(head)...)
	prompt = append(prompt, llm.Message{Role: "user", Content: instruction})
	resp, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return metacmd.ErrCancelled
		}
		return fmt.Errorf("summarize context: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return errors.New("summarize context: empty summary")
	}

	backup, err := log.RevertTo(ctx, 0)
	if err != nil {
		return err
	}
	if err := log.Checkpoint(ctx); err != nil {
		return err
	}
	if err := log.AppendMessage(ctx, types.UserMessage(types.SystemText(summaryLead+"\n"+summary))); err != nil {
		return err
	}
	if len(tail) > 0 {
		if err := log.Checkpoint(ctx); err != nil {
			return err
		}
		for _, m := range tail {
			if err := log.AppendMessage(ctx, m); err != nil {
				return err
			}
		}
	}
	slog.Info("compacted context", "path", log.Path(), "backup", backup,
		"messages", len(head), "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return nil
}

func messages(entries []types.LogEntry) []types.Message {
	var out []types.Message
	for _, e := range entries {
		if e.Message != nil {
			out = append(out, *e.Message)
		}
	}
	return out
}
