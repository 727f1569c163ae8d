package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gopherlog/internal/config"
	"github.com/user/gopherlog/internal/metacmd"
	"github.com/user/gopherlog/internal/state"
)

func newTestShell(t *testing.T, input, model string) (*shell, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{ShareDir: t.TempDir(), PreviewWidth: 50, CatalogWorkers: 2}
	cfg.LLM.Model = model

	st := openStores(cfg)
	wd := t.TempDir()
	sess, err := startSession(ctx, st, wd, "", false)
	require.NoError(t, err)
	log := state.OpenLog(sess.HistoryFile)

	registry, err := metacmd.Builtins()
	require.NoError(t, err)
	in := bufio.NewScanner(strings.NewReader(input))
	out := &bytes.Buffer{}
	app := &metacmd.App{
		WorkDir:  wd,
		Version:  "test",
		Sessions: st.sessions,
		Catalog:  st.catalog,
		Session:  sess,
		Log:      log,
		Chooser:  &lineChooser{in: in, out: out},
		Commands: registry,
		Out:      out,
	}
	return &shell{cfg: cfg, app: app, in: in, out: out}, out
}

func TestShellRecordsAndClears(t *testing.T) {
	sh, out := newTestShell(t, "hello\nsecond\n/context\n/clear\n/exit\nnever read\n", "gpt-4")
	path := sh.app.Log.Path()

	require.NoError(t, sh.run(context.Background()))
	assert.Contains(t, out.String(), "Messages:    2")
	assert.Contains(t, out.String(), "Checkpoints: 2")
	assert.Contains(t, out.String(), "Context has been cleared")
	assert.True(t, strings.HasSuffix(out.String(), "Bye!\n"))

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, live)

	backup, err := os.ReadFile(strings.TrimSuffix(path, ".jsonl") + "_1.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(backup), "\n"))
}

func TestShellWithoutModel(t *testing.T) {
	sh, out := newTestShell(t, "hello\n/compact\n/nope\n", "")

	require.NoError(t, sh.run(context.Background()))
	assert.Equal(t, 2, strings.Count(out.String(), "LLM not set"))
	assert.Contains(t, out.String(), "unknown meta command")
	assert.Empty(t, sh.app.Log.Entries())
}

func TestShellResumeSwitchesLog(t *testing.T) {
	ctx := context.Background()
	sh, out := newTestShell(t, "first\n", "gpt-4")
	require.NoError(t, sh.run(ctx))
	first := sh.app.Session

	second, err := sh.app.Sessions.Create(ctx, sh.app.WorkDir)
	require.NoError(t, err)
	sh.app.Session = second
	sh.app.Log = state.OpenLog(second.HistoryFile)

	summaries, err := sh.app.Catalog.List(ctx, sh.app.WorkDir)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	choice := 1
	for i, s := range summaries {
		if s.ID == first.ID {
			choice = i + 1
		}
	}

	sh.in = bufio.NewScanner(strings.NewReader("/resume\n" + strconv.Itoa(choice) + "\n"))
	sh.app.Chooser = &lineChooser{in: sh.in, out: out}
	out.Reset()
	require.NoError(t, sh.run(ctx))

	assert.Contains(t, out.String(), "user✨ first")
	assert.Equal(t, first.ID, sh.app.Session.ID)
	assert.Equal(t, first.HistoryFile, sh.app.Log.Path())
}

func TestLineChooser(t *testing.T) {
	out := &bytes.Buffer{}
	c := &lineChooser{in: bufio.NewScanner(strings.NewReader("9\nx\n2\n")), out: out}
	idx, err := c.Choose(context.Background(), "Pick:", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, strings.Count(out.String(), "Enter a number between 1 and 2."))

	c = &lineChooser{in: bufio.NewScanner(strings.NewReader("\n")), out: out}
	_, err = c.Choose(context.Background(), "Pick:", []string{"a"})
	assert.ErrorIs(t, err, metacmd.ErrCancelled)
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{ShareDir: t.TempDir(), PreviewWidth: 50, CatalogWorkers: 1}
	st := openStores(cfg)
	wd := t.TempDir()

	a, err := startSession(ctx, st, wd, "", false)
	require.NoError(t, err)
	again, err := startSession(ctx, st, wd, "", false)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)

	b, err := startSession(ctx, st, wd, "", true)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	back, err := startSession(ctx, st, wd, a.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, a.ID, back.ID)
	last, ok, err := st.meta.LastSession(ctx, wd)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ID, last)

	_, err = startSession(ctx, st, wd, "no/such", false)
	assert.Error(t, err)

	assert.Equal(t, filepath.Dir(a.HistoryFile), filepath.Dir(b.HistoryFile))
}

func TestCompactorFromConfig(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, compactor(cfg))

	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.Provider = "anthropic"
	assert.Nil(t, compactor(cfg))

	cfg.LLM.Provider = "openai"
	assert.NotNil(t, compactor(cfg))
}
