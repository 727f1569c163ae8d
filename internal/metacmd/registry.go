// Package metacmd implements the slash commands of the interactive shell.
// Commands live in an explicit Registry built at startup and handed to
// whatever dispatches user input.
package metacmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Errors a command handler may return. Hosts react to them: prompting for
// model setup, reporting provider failures, reloading config, or silently
// dropping a cancelled command.
var (
	ErrLLMNotSet = errors.New("no model configured")
	ErrProvider  = errors.New("provider error")
	ErrReload    = errors.New("configuration must be reloaded")
	ErrCancelled = errors.New("cancelled by user")

	ErrUnknownCommand = errors.New("unknown meta command")
	ErrNoSession      = errors.New("meta command requires an active agent session")
)

// Outcome tells the dispatcher whether a command finished or must be
// handled by the host itself.
type Outcome int

const (
	Handled Outcome = iota
	DelegateToHost
)

func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case DelegateToHost:
		return "delegate-to-host"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Handler runs a command with the raw arguments that followed its name.
type Handler func(ctx context.Context, app *App, args []string) (Outcome, error)

type Command struct {
	Name            string
	Aliases         []string
	Description     string
	RequiresSession bool
	Handler         Handler
}

// SlashName renders "/name (alias, alias)".
func (c *Command) SlashName() string {
	if len(c.Aliases) > 0 {
		return fmt.Sprintf("/%s (%s)", c.Name, strings.Join(c.Aliases, ", "))
	}
	return "/" + c.Name
}

// Registry holds commands in registration order and resolves names and
// aliases.
type Registry struct {
	commands []*Command
	byName   map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds cmd. A name or alias that is already taken is an error.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return errors.New("command needs a name and a handler")
	}
	names := append([]string{cmd.Name}, cmd.Aliases...)
	for _, name := range names {
		if _, ok := r.byName[name]; ok {
			return fmt.Errorf("meta command %q already registered", name)
		}
	}
	c := cmd
	r.commands = append(r.commands, &c)
	for _, name := range names {
		r.byName[name] = &c
	}
	return nil
}

// Get returns a command by primary name or alias.
func (r *Registry) Get(name string) (*Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns the registered commands once each, without alias duplicates.
func (r *Registry) All() []*Command {
	out := make([]*Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// IsCommand reports whether a line of user input is a slash command.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Parse splits "/name arg arg" into the command name and its arguments.
func Parse(line string) (string, []string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", nil, false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Dispatch parses line and runs the matching command.
func (r *Registry) Dispatch(ctx context.Context, app *App, line string) (Outcome, error) {
	name, args, ok := Parse(line)
	if !ok {
		return Handled, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}
	cmd, ok := r.Get(name)
	if !ok {
		return Handled, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
	if cmd.RequiresSession && (app == nil || app.Log == nil) {
		return Handled, fmt.Errorf("%w: /%s", ErrNoSession, cmd.Name)
	}
	slog.Debug("running meta command", "name", cmd.Name, "args", args)
	return cmd.Handler(ctx, app, args)
}
