// internal/state/log.go
package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/user/gopherlog/internal/types"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

const logExt = ".jsonl"

// SessionLog is the append-only JSONL record of one conversation. Records are
// never rewritten in place; reverting forks the log into a new file and keeps
// the previous one as a backup.
//
// A SessionLog has a single owner and is not safe for concurrent use.
type SessionLog struct {
	path         string
	entries      []types.LogEntry
	nCheckpoints int
	skipped      int
}

// OpenLog returns a log backed by path. Nothing is read until Restore.
func OpenLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

func (l *SessionLog) Path() string {
	return l.path
}

// Restore rebuilds the in-memory entries from the backing file and reports
// whether any entry was recovered. Records that fail to decode are skipped
// with a warning. A missing file restores nothing and is not an error.
func (l *SessionLog) Restore(ctx context.Context) (bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no session log to restore", "path", l.path)
			return false, nil
		}
		return false, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var (
		entries     []types.LogEntry
		checkpoints int
		skipped     int
		lineNo      int
	)
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var entry types.LogEntry
			if err := json.Unmarshal(trimmed, &entry); err != nil {
				slog.Warn("skipping undecodable log record", "path", l.path, "line", lineNo, "error", err)
				skipped++
			} else {
				entries = append(entries, entry)
				if entry.IsCheckpoint() {
					checkpoints++
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return false, fmt.Errorf("read session log: %w", readErr)
		}
	}

	l.entries = entries
	l.nCheckpoints = checkpoints
	l.skipped = skipped
	return len(entries) > 0, nil
}

// Append writes one record to the end of the backing file.
func (l *SessionLog) Append(_ context.Context, entry types.LogEntry) error {
	line, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	// Keep the in-memory entry identical to what a later Restore would decode.
	var stored types.LogEntry
	if err := json.Unmarshal(line, &stored); err != nil {
		return fmt.Errorf("decode log entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	torn, err := unterminated(f)
	if err != nil {
		f.Close()
		return err
	}
	if torn {
		// A crash left a partial record; start ours on a fresh line.
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session log: %w", err)
	}

	l.entries = append(l.entries, stored)
	if stored.IsCheckpoint() {
		l.nCheckpoints++
	}
	return nil
}

// unterminated reports whether f is non-empty and does not end in a newline.
func unterminated(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat session log: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read session log tail: %w", err)
	}
	return last[0] != '\n', nil
}

func (l *SessionLog) AppendMessage(ctx context.Context, msg types.Message) error {
	return l.Append(ctx, types.MessageEntry(msg))
}

// Checkpoint appends the next checkpoint marker.
func (l *SessionLog) Checkpoint(ctx context.Context) error {
	return l.Append(ctx, types.CheckpointEntry(l.nCheckpoints))
}

// RevertTo makes the n-th checkpoint marker the new head: only the entries
// before it are kept. The retained prefix is written to a fresh file that
// replaces the live path, while the previous file is preserved byte for byte
// at a backup path, which is returned. On error the live file is unchanged.
func (l *SessionLog) RevertTo(ctx context.Context, n int) (string, error) {
	if n < 0 || n >= l.nCheckpoints {
		return "", fmt.Errorf("%w: %d (log has %d)", ErrCheckpointNotFound, n, l.nCheckpoints)
	}
	cut := l.checkpointPosition(n)
	retained := slices.Clone(l.entries[:cut])

	var buf bytes.Buffer
	for _, entry := range retained {
		if raw := entry.Raw(); len(raw) > 0 {
			buf.Write(raw)
			buf.WriteByte('\n')
			continue
		}
		line, err := encodeEntry(entry)
		if err != nil {
			return "", err
		}
		buf.Write(line)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Dir(l.path)
	tmp, err := writeTempFile(dir, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("write forked log: %w", err)
	}
	backup, err := backupLog(l.path)
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("switch to forked log: %w", err)
	}

	l.entries = retained
	l.nCheckpoints = n
	slog.Info("reverted session log", "path", l.path, "checkpoint", n, "backup", backup)
	return backup, nil
}

// Entries returns a copy of every restored or appended entry in order.
func (l *SessionLog) Entries() []types.LogEntry {
	return slices.Clone(l.entries)
}

// History returns the messages of the log in order, without checkpoints.
func (l *SessionLog) History() []types.Message {
	out := make([]types.Message, 0, len(l.entries))
	for _, entry := range l.entries {
		if entry.Message != nil {
			out = append(out, *entry.Message)
		}
	}
	return out
}

func (l *SessionLog) NCheckpoints() int {
	return l.nCheckpoints
}

// Skipped returns how many records the last Restore could not decode.
func (l *SessionLog) Skipped() int {
	return l.skipped
}

func (l *SessionLog) checkpointPosition(n int) int {
	seen := 0
	for i, entry := range l.entries {
		if !entry.IsCheckpoint() {
			continue
		}
		if seen == n {
			return i
		}
		seen++
	}
	return len(l.entries)
}

func encodeEntry(entry types.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		return nil, fmt.Errorf("encode log entry: %w", err)
	}
	return buf.Bytes(), nil
}

// backupLog preserves the current file at the first free <stem>_<k>.jsonl
// path. It hard-links when possible and copies otherwise; the live file is
// never modified. A log that was never written has no backup.
func backupLog(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat session log: %w", err)
	}
	backup, err := nextBackupPath(path)
	if err != nil {
		return "", err
	}
	if err := os.Link(path, backup); err == nil {
		return backup, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read session log: %w", err)
	}
	tmp, err := writeTempFile(filepath.Dir(path), data)
	if err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, backup); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename backup: %w", err)
	}
	return backup, nil
}

func nextBackupPath(path string) (string, error) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), logExt)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s%s%d%s", stem, types.ForkSeparator, i, logExt))
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat backup candidate: %w", err)
		}
	}
}

// isBackupStem reports whether a log file stem names a fork backup rather
// than a live session.
func isBackupStem(stem string) bool {
	return strings.Contains(stem, types.ForkSeparator)
}
