package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/gopherlog/internal/compact"
	"github.com/user/gopherlog/internal/config"
	ctxengine "github.com/user/gopherlog/internal/context"
	"github.com/user/gopherlog/internal/metacmd"
	"github.com/user/gopherlog/internal/state"
	"github.com/user/gopherlog/internal/types"
	"github.com/user/gopherlog/pkg/llm"
	"github.com/user/gopherlog/pkg/llm/openai"
)

var errNoCurrentSession = errors.New("no current session for this directory, start one with 'gopherlog session new'")

type stores struct {
	meta     *state.MetadataStore
	sessions *state.Sessions
	catalog  *state.Catalog
}

func openStores(cfg *config.Config) *stores {
	meta := state.NewMetadataStore(cfg.MetadataPath())
	return &stores{
		meta:     meta,
		sessions: state.NewSessions(cfg.ShareDir, meta),
		catalog:  state.NewCatalog(cfg.ShareDir, meta, cfg.PreviewWidth, cfg.CatalogWorkers),
	}
}

// session resolves id in wd, or the directory's current session when id is
// empty.
func (s *stores) session(ctx context.Context, wd, id string) (*state.Session, error) {
	if id == "" {
		sess, ok, err := s.sessions.Continue(ctx, wd)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNoCurrentSession
		}
		return sess, nil
	}
	sid, err := types.ParseSessionID(id)
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, wd, sid)
}

// openLog resolves a session and restores its log.
func (s *stores) openLog(ctx context.Context, wd, id string) (*state.Session, *state.SessionLog, error) {
	sess, err := s.session(ctx, wd, id)
	if err != nil {
		return nil, nil, err
	}
	log := state.OpenLog(sess.HistoryFile)
	if _, err := log.Restore(ctx); err != nil {
		return nil, nil, fmt.Errorf("restore session %s: %w", sess.ID, err)
	}
	if n := log.Skipped(); n > 0 {
		slog.Warn("skipped unreadable log records", "session_id", sess.ID, "count", n)
	}
	return sess, log, nil
}

// tokenEngine builds the token counter for the configured model. Counting is
// optional, so failures only disable it.
func tokenEngine(cfg *config.Config) *ctxengine.Engine {
	model := cfg.LLM.Model
	if model == "" {
		model = "gpt-4"
	}
	engine, err := ctxengine.New(model, cfg.LLM.MaxContextTokens)
	if err != nil {
		slog.Warn("token counting disabled", "model", model, "error", err)
		return nil
	}
	return engine
}

// compactor returns the summarizer behind /compact, or nil when no model is
// configured.
func compactor(cfg *config.Config) metacmd.Soul {
	if cfg.LLM.Model == "" {
		return nil
	}
	if cfg.LLM.Provider != "" && cfg.LLM.Provider != "openai" {
		slog.Warn("unsupported provider, compaction disabled", "provider", cfg.LLM.Provider)
		return nil
	}
	client := openai.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, 0)
	return compact.New(client)
}
