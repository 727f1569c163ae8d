// internal/state/session.go
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/user/gopherlog/internal/types"
)

var ErrSessionNotFound = errors.New("session not found")

// Session binds a session id to its working directory and live log file.
type Session struct {
	ID          types.SessionID
	WorkDir     string
	HistoryFile string
}

// Sessions creates, continues and loads sessions of working directories,
// keeping the registry's last session pointer current.
type Sessions struct {
	shareDir string
	meta     *MetadataStore
}

// NewSessions creates a session manager storing logs under shareDir.
func NewSessions(shareDir string, meta *MetadataStore) *Sessions {
	return &Sessions{shareDir: shareDir, meta: meta}
}

func (s *Sessions) historyFile(workDir string, id types.SessionID) string {
	return filepath.Join(NamespaceDir(s.shareDir, workDir), string(id)+logExt)
}

// Create starts a new session for workDir and makes it the active one.
func (s *Sessions) Create(ctx context.Context, workDir string) (*Session, error) {
	wd, err := CanonicalPath(workDir)
	if err != nil {
		return nil, err
	}
	if _, err := EnsureNamespaceDir(s.shareDir, wd); err != nil {
		return nil, err
	}

	id := types.NewSessionID()
	path := s.historyFile(wd, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create session log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close session log: %w", err)
	}

	if err := s.meta.SetLastSession(ctx, wd, id); err != nil {
		return nil, err
	}
	slog.Info("created session", "session_id", id, "work_dir", wd)
	return &Session{ID: id, WorkDir: wd, HistoryFile: path}, nil
}

// Continue returns the last active session of workDir. A directory that was
// never used, has no session, or whose session file is gone yields false.
func (s *Sessions) Continue(ctx context.Context, workDir string) (*Session, bool, error) {
	wd, err := CanonicalPath(workDir)
	if err != nil {
		return nil, false, err
	}
	id, ok, err := s.meta.LastSession(ctx, wd)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		slog.Debug("working directory has no previous session", "work_dir", wd)
		return nil, false, nil
	}

	path := s.historyFile(wd, id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("last session log is missing", "session_id", id, "path", path)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat session log: %w", err)
	}
	return &Session{ID: id, WorkDir: wd, HistoryFile: path}, true, nil
}

// Get resolves an existing session of workDir without changing which session
// is active.
func (s *Sessions) Get(_ context.Context, workDir string, id types.SessionID) (*Session, error) {
	wd, err := CanonicalPath(workDir)
	if err != nil {
		return nil, err
	}
	if _, err := types.ParseSessionID(string(id)); err != nil {
		return nil, err
	}

	path := s.historyFile(wd, id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("session log not found", "session_id", id, "path", path)
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("stat session log: %w", err)
	}
	return &Session{ID: id, WorkDir: wd, HistoryFile: path}, nil
}

// Activate records sess as the active session of its working directory.
func (s *Sessions) Activate(ctx context.Context, sess *Session) error {
	if err := s.meta.SetLastSession(ctx, sess.WorkDir, sess.ID); err != nil {
		return err
	}
	slog.Info("activated session", "session_id", sess.ID, "work_dir", sess.WorkDir)
	return nil
}

// Load resolves an existing session of workDir and makes it the active one.
func (s *Sessions) Load(ctx context.Context, workDir string, id types.SessionID) (*Session, error) {
	sess, err := s.Get(ctx, workDir, id)
	if err != nil {
		return nil, err
	}
	if err := s.Activate(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
