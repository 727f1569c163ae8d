package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gopherlog/internal/config"
	"github.com/user/gopherlog/internal/metacmd"
	"github.com/user/gopherlog/internal/state"
	"github.com/user/gopherlog/internal/types"
)

const maxInputLine = 1 << 20

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().Bool("new", false, "start a new session instead of continuing the current one")
	shellCmd.Flags().StringP("session", "s", "", "resume this session id")
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with meta commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}
		fresh, _ := cmd.Flags().GetBool("new")
		id, _ := cmd.Flags().GetString("session")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		st := openStores(cfg)
		sess, err := startSession(ctx, st, wd, id, fresh)
		if err != nil {
			return err
		}
		log := state.OpenLog(sess.HistoryFile)
		if _, err := log.Restore(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}

		registry, err := metacmd.Builtins()
		if err != nil {
			return err
		}
		in := bufio.NewScanner(os.Stdin)
		in.Buffer(make([]byte, 0, 64*1024), maxInputLine)

		app := &metacmd.App{
			WorkDir:  wd,
			Version:  version,
			Sessions: st.sessions,
			Catalog:  st.catalog,
			Session:  sess,
			Log:      log,
			Soul:     compactor(cfg),
			Tokens:   tokenEngine(cfg),
			Chooser:  &lineChooser{in: in, out: os.Stdout},
			Commands: registry,
			Out:      os.Stdout,

			LabelWidth: cfg.PreviewWidth,
		}
		sh := &shell{cfg: cfg, app: app, in: in, out: os.Stdout}
		return sh.run(ctx)
	},
}

func startSession(ctx context.Context, st *stores, wd, id string, fresh bool) (*state.Session, error) {
	switch {
	case id != "":
		sid, err := types.ParseSessionID(id)
		if err != nil {
			return nil, err
		}
		return st.sessions.Load(ctx, wd, sid)
	case !fresh:
		sess, ok, err := st.sessions.Continue(ctx, wd)
		if err != nil {
			return nil, err
		}
		if ok {
			return sess, nil
		}
	}
	return st.sessions.Create(ctx, wd)
}

type shell struct {
	cfg *config.Config
	app *metacmd.App
	in  *bufio.Scanner
	out io.Writer
}

func (s *shell) run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Session %s. Send /help for help information.\n", s.app.Session.ID)
	if len(s.app.Log.Entries()) > 0 {
		metacmd.RenderHistory(s.out, s.app.Log.History())
	}

	for {
		fmt.Fprint(s.out, "✨ ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}

		if metacmd.IsCommand(line) {
			outcome, err := s.app.Commands.Dispatch(ctx, s.app, line)
			if err != nil {
				s.report(err)
				continue
			}
			if outcome == metacmd.DelegateToHost {
				fmt.Fprintln(s.out, "Bye!")
				return nil
			}
			continue
		}

		if err := s.record(ctx, line); err != nil {
			s.report(err)
		}
	}
}

// record stores a user turn behind a fresh checkpoint so /clear and /compact
// can rewind to it.
func (s *shell) record(ctx context.Context, line string) error {
	if s.cfg.LLM.Model == "" {
		return metacmd.ErrLLMNotSet
	}
	if err := s.app.Log.Checkpoint(ctx); err != nil {
		return err
	}
	return s.app.Log.AppendMessage(ctx, types.UserMessage(line))
}

func (s *shell) report(err error) {
	switch {
	case errors.Is(err, metacmd.ErrLLMNotSet):
		fmt.Fprintln(s.out, "LLM not set, run 'gopherlog config set llm.model <model>'")
	case errors.Is(err, metacmd.ErrProvider):
		fmt.Fprintf(s.out, "LLM provider error: %v\n", err)
	case errors.Is(err, metacmd.ErrReload):
		cfg, lerr := config.Load(cfgPath)
		if lerr != nil {
			fmt.Fprintf(s.out, "Failed to reload config: %v\n", lerr)
			return
		}
		s.cfg = cfg
		s.app.Soul = compactor(cfg)
		s.app.Tokens = tokenEngine(cfg)
		fmt.Fprintln(s.out, "Configuration reloaded.")
	case errors.Is(err, metacmd.ErrCancelled):
		fmt.Fprintln(s.out, "Interrupted by user")
	case errors.Is(err, metacmd.ErrUnknownCommand):
		fmt.Fprintf(s.out, "%v, send /help for available commands\n", err)
	default:
		slog.Error("command failed", "error", err)
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// lineChooser numbers the options and reads the choice from the shell's
// input. An empty answer cancels.
type lineChooser struct {
	in  *bufio.Scanner
	out io.Writer
}

func (c *lineChooser) Choose(ctx context.Context, prompt string, options []string) (int, error) {
	fmt.Fprintln(c.out, prompt)
	for i, o := range options {
		fmt.Fprintf(c.out, "%3d) %s\n", i+1, o)
	}
	for {
		fmt.Fprint(c.out, "Number (empty to cancel): ")
		if !c.in.Scan() || ctx.Err() != nil {
			return -1, metacmd.ErrCancelled
		}
		answer := strings.TrimSpace(c.in.Text())
		if answer == "" {
			return -1, metacmd.ErrCancelled
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(c.out, "Enter a number between 1 and %d.\n", len(options))
	}
}
