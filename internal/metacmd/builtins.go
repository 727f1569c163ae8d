package metacmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/user/gopherlog/internal/state"
)

const contextEmpty = "Context is empty."

// Builtins returns a registry holding the built-in meta commands.
func Builtins() (*Registry, error) {
	r := NewRegistry()
	cmds := []Command{
		{Name: "exit", Aliases: []string{"quit"}, Description: "Exit the application", Handler: exitCmd},
		{Name: "help", Aliases: []string{"h", "?"}, Description: "Show help information", Handler: helpCmd},
		{Name: "version", Description: "Show version information", Handler: versionCmd},
		{Name: "clear", Aliases: []string{"reset"}, Description: "Clear the context", RequiresSession: true, Handler: clearCmd},
		{Name: "compact", Description: "Compact the context", RequiresSession: true, Handler: compactCmd},
		{Name: "sessions", Aliases: []string{"resume"}, Description: "List sessions and resume optionally", RequiresSession: true, Handler: sessionsCmd},
		{Name: "context", Description: "Show context window usage", RequiresSession: true, Handler: contextCmd},
	}
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func exitCmd(context.Context, *App, []string) (Outcome, error) {
	return DelegateToHost, nil
}

func helpCmd(_ context.Context, app *App, _ []string) (Outcome, error) {
	w := app.out()
	fmt.Fprintln(w, "Send a message to talk to the agent, or use a meta command:")
	if app.Commands == nil {
		return Handled, nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range app.Commands.All() {
		fmt.Fprintf(tw, "  %s\t%s\n", c.SlashName(), c.Description)
	}
	tw.Flush()
	return Handled, nil
}

func versionCmd(_ context.Context, app *App, _ []string) (Outcome, error) {
	fmt.Fprintf(app.out(), "gopherlog, version %s\n", app.Version)
	return Handled, nil
}

func clearCmd(ctx context.Context, app *App, _ []string) (Outcome, error) {
	if app.Log.NCheckpoints() == 0 {
		fmt.Fprintln(app.out(), contextEmpty)
		return Handled, nil
	}
	backup, err := app.Log.RevertTo(ctx, 0)
	if err != nil {
		return Handled, fmt.Errorf("clear context: %w", err)
	}
	slog.Info("context cleared", "path", app.Log.Path(), "backup", backup)
	fmt.Fprintln(app.out(), "✓ Context has been cleared.")
	return Handled, nil
}

func compactCmd(ctx context.Context, app *App, _ []string) (Outcome, error) {
	if app.Soul == nil {
		return Handled, ErrLLMNotSet
	}
	if app.Log.NCheckpoints() == 0 {
		fmt.Fprintln(app.out(), contextEmpty)
		return Handled, nil
	}
	fmt.Fprintln(app.out(), "Compacting...")
	if err := app.Soul.Compact(ctx, app.Log); err != nil {
		if isCommandError(err) {
			return Handled, err
		}
		return Handled, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	fmt.Fprintln(app.out(), "✓ Context has been compacted.")
	return Handled, nil
}

func sessionsCmd(ctx context.Context, app *App, _ []string) (Outcome, error) {
	w := app.out()
	summaries, err := app.Catalog.List(ctx, app.WorkDir)
	if err != nil {
		return Handled, fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return Handled, nil
	}

	now := app.now()
	if app.Chooser == nil {
		for _, s := range summaries {
			fmt.Fprintln(w, SessionLabel(s, now, app.labelWidth()))
		}
		return Handled, nil
	}

	options := make([]string, len(summaries))
	for i, s := range summaries {
		options[i] = SessionLabel(s, now, app.labelWidth())
	}
	idx, err := app.Chooser.Choose(ctx, "Select a session to switch to:", options)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return Handled, nil
		}
		return Handled, err
	}
	if idx < 0 || idx >= len(summaries) {
		return Handled, fmt.Errorf("session choice %d out of range", idx)
	}

	picked := summaries[idx]
	if app.Session != nil && picked.ID == app.Session.ID {
		fmt.Fprintln(w, "You are already in this session.")
		return Handled, nil
	}

	sess, err := app.Sessions.Get(ctx, app.WorkDir, picked.ID)
	if err != nil {
		fmt.Fprintf(w, "Failed to switch session: %v\n", err)
		return Handled, nil
	}
	log := state.OpenLog(sess.HistoryFile)
	if _, err := log.Restore(ctx); err != nil {
		fmt.Fprintf(w, "Failed to switch session: %v\n", err)
		return Handled, nil
	}
	if len(log.History()) == 0 {
		fmt.Fprintln(w, "The session is empty.")
		return Handled, nil
	}
	if err := app.Sessions.Activate(ctx, sess); err != nil {
		return Handled, fmt.Errorf("activate session: %w", err)
	}

	app.Session = sess
	app.Log = log
	fmt.Fprintln(w)
	RenderHistory(w, log.History())
	fmt.Fprintln(w, "✓ Session switched successfully")
	return Handled, nil
}

func contextCmd(_ context.Context, app *App, _ []string) (Outcome, error) {
	history := app.Log.History()
	w := app.out()
	fmt.Fprintf(w, "Messages:    %d\n", len(history))
	fmt.Fprintf(w, "Checkpoints: %d\n", app.Log.NCheckpoints())
	if app.Tokens != nil {
		used := app.Tokens.CountHistory(history)
		fmt.Fprintf(w, "Tokens:      %d / %d (%.1f%%)\n", used, app.Tokens.MaxTokens(), app.Tokens.Usage(history)*100)
	}
	return Handled, nil
}

func isCommandError(err error) bool {
	for _, target := range []error{ErrLLMNotSet, ErrProvider, ErrReload, ErrCancelled} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
