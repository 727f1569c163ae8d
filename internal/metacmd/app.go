package metacmd

import (
	"context"
	"io"
	"time"

	ctxengine "github.com/user/gopherlog/internal/context"
	"github.com/user/gopherlog/internal/state"
	"github.com/user/gopherlog/internal/types"
)

// Soul is the agent loop that owns the model. Commands only reach it for
// work this module cannot do itself.
type Soul interface {
	// Compact summarizes the log up to its latest checkpoint, reverting and
	// appending through the log's own API.
	Compact(ctx context.Context, log *state.SessionLog) error
}

// Chooser asks the user to pick one of options. It returns ErrCancelled when
// the user backs out.
type Chooser interface {
	Choose(ctx context.Context, prompt string, options []string) (int, error)
}

// App is the application state handed to every command handler.
type App struct {
	WorkDir  string
	Version  string
	Sessions *state.Sessions
	Catalog  types.SessionCatalog
	Session  *state.Session
	Log      *state.SessionLog
	Soul     Soul
	Tokens   *ctxengine.Engine
	Chooser  Chooser
	Commands *Registry
	Out      io.Writer
	Now      func() time.Time

	// LabelWidth is the display width of session titles in the picker,
	// normally the configured preview width.
	LabelWidth int
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) labelWidth() int {
	if a.LabelWidth > 0 {
		return a.LabelWidth
	}
	return DefaultLabelWidth
}

func (a *App) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return io.Discard
}
