// internal/state/log_test.go
package state

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/gopherlog/internal/types"
)

func messageTexts(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSessionLogAppendRestore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.jsonl")
	log := OpenLog(path)

	if err := log.AppendMessage(ctx, types.UserMessage("hello")); err != nil {
		t.Fatal(err)
	}
	if err := log.Checkpoint(ctx); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.Message{
		Role:    types.RoleAssistant,
		Content: types.Parts(types.TextPart("hi"), types.TextPart("there")),
	}); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.Message{Role: types.RoleTool, Content: types.PlainText("ok"), ToolCallID: "call-1"}); err != nil {
		t.Fatal(err)
	}

	restored := OpenLog(path)
	ok, err := restored.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected entries to be restored")
	}

	got, want := restored.Entries(), log.Entries()
	if len(got) != 4 || len(got) != len(want) {
		t.Fatalf("expected 4 entries, got %d (in memory %d)", len(got), len(want))
	}
	for i := range got {
		if !bytes.Equal(got[i].Raw(), want[i].Raw()) {
			t.Errorf("entry %d: expected %s, got %s", i, want[i].Raw(), got[i].Raw())
		}
	}
	if restored.NCheckpoints() != 1 {
		t.Errorf("expected 1 checkpoint, got %d", restored.NCheckpoints())
	}
	if texts := messageTexts(restored.History()); !equalStrings(texts, []string{"hello", "hi\nthere", "ok"}) {
		t.Errorf("unexpected history %q", texts)
	}
	if restored.History()[2].ToolCallID != "call-1" {
		t.Error("expected tool call id to survive restore")
	}
}

func TestSessionLogRestoreMissing(t *testing.T) {
	log := OpenLog(filepath.Join(t.TempDir(), "missing.jsonl"))
	ok, err := log.Restore(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected nothing to restore")
	}
}

func TestSessionLogRestoreSkipsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	content := `{"role":"user","content":"one"}
{"role":"assistant","content":"two"}
{"role":"user","content":
{"role":"_checkpoint","id":0}

{"role":"user","content":"three"}
{"role":"assistant","content":"four"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	log := OpenLog(path)
	ok, err := log.Restore(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected entries to be restored")
	}
	if n := len(log.Entries()); n != 5 {
		t.Errorf("expected 5 valid entries, got %d", n)
	}
	if log.Skipped() != 1 {
		t.Errorf("expected 1 skipped record, got %d", log.Skipped())
	}
	if texts := messageTexts(log.History()); !equalStrings(texts, []string{"one", "two", "three", "four"}) {
		t.Errorf("unexpected history %q", texts)
	}
}

func TestSessionLogAppendAfterTornTail(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.jsonl")
	torn := `{"role":"user","content":"one"}` + "\n" + `{"role":"assis`
	if err := os.WriteFile(path, []byte(torn), 0o644); err != nil {
		t.Fatal(err)
	}

	log := OpenLog(path)
	if _, err := log.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.UserMessage("two")); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.AssistantMessage("three")); err != nil {
		t.Fatal(err)
	}

	restored := OpenLog(path)
	if _, err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	if texts := messageTexts(restored.History()); !equalStrings(texts, want) {
		t.Errorf("expected %q after restore, got %q", want, texts)
	}
	if texts := messageTexts(log.History()); !equalStrings(texts, want) {
		t.Errorf("expected %q in memory, got %q", want, texts)
	}
	if restored.Skipped() != 1 {
		t.Errorf("expected the torn record to be skipped, got %d skipped", restored.Skipped())
	}
}

func TestSessionLogRestoreLongLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	log := OpenLog(path)
	ctx := context.Background()
	big := string(bytes.Repeat([]byte("x"), 1<<20))
	if err := log.AppendMessage(ctx, types.UserMessage("first")); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.AssistantMessage(big)); err != nil {
		t.Fatal(err)
	}

	restored := OpenLog(path)
	if _, err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(restored.History()); n != 2 {
		t.Errorf("expected 2 messages, got %d", n)
	}
}

// buildCheckpointedLog writes checkpoints at positions 0, 3 and 7.
func buildCheckpointedLog(t *testing.T, path string) *SessionLog {
	t.Helper()
	ctx := context.Background()
	log := OpenLog(path)
	steps := []func() error{
		func() error { return log.Checkpoint(ctx) },
		func() error { return log.AppendMessage(ctx, types.UserMessage("u1")) },
		func() error { return log.AppendMessage(ctx, types.AssistantMessage("a2")) },
		func() error { return log.Checkpoint(ctx) },
		func() error { return log.AppendMessage(ctx, types.UserMessage("u4")) },
		func() error { return log.AppendMessage(ctx, types.AssistantMessage("a5")) },
		func() error { return log.AppendMessage(ctx, types.UserMessage("u6")) },
		func() error { return log.Checkpoint(ctx) },
		func() error { return log.AppendMessage(ctx, types.AssistantMessage("a8")) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	return log
}

func TestSessionLogRevertForks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.jsonl")
	log := buildCheckpointedLog(t, path)
	if log.NCheckpoints() != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", log.NCheckpoints())
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	backup, err := log.RevertTo(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if backup != filepath.Join(dir, "abc_1.jsonl") {
		t.Errorf("unexpected backup path %s", backup)
	}
	preserved, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, preserved) {
		t.Error("expected backup to be byte-identical to the pre-revert log")
	}

	if n := len(log.Entries()); n != 3 {
		t.Errorf("expected 3 retained entries, got %d", n)
	}
	if log.NCheckpoints() != 1 {
		t.Errorf("expected 1 checkpoint after revert, got %d", log.NCheckpoints())
	}
	if texts := messageTexts(log.History()); !equalStrings(texts, []string{"u1", "a2"}) {
		t.Errorf("unexpected history after revert %q", texts)
	}

	reopened := OpenLog(path)
	if _, err := reopened.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(reopened.Entries()); n != 3 {
		t.Errorf("expected forked file to hold 3 entries, got %d", n)
	}

	// Appends go to the fork; the backup stays frozen.
	if err := log.Checkpoint(ctx); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendMessage(ctx, types.UserMessage("after")); err != nil {
		t.Fatal(err)
	}
	if entries := log.Entries(); entries[3].Checkpoint.ID != 1 {
		t.Errorf("expected next checkpoint id 1, got %d", entries[3].Checkpoint.ID)
	}
	preserved, _ = os.ReadFile(backup)
	if !bytes.Equal(before, preserved) {
		t.Error("expected backup to stay unchanged after further appends")
	}

	second, err := log.RevertTo(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if second != filepath.Join(dir, "abc_2.jsonl") {
		t.Errorf("expected a fresh backup path, got %s", second)
	}
	if len(log.Entries()) != 0 || log.NCheckpoints() != 0 {
		t.Errorf("expected empty log after reverting to checkpoint 0")
	}
}

func TestSessionLogRevertOutOfRange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.jsonl")
	log := OpenLog(path)
	if err := log.AppendMessage(ctx, types.UserMessage("only")); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	for _, n := range []int{0, -1, 5} {
		if _, err := log.RevertTo(ctx, n); !errors.Is(err, ErrCheckpointNotFound) {
			t.Errorf("RevertTo(%d): expected ErrCheckpointNotFound, got %v", n, err)
		}
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("expected log to be untouched")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected no backup files, found %d entries", len(entries))
	}
}
