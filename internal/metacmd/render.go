package metacmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/user/gopherlog/internal/types"
)

const (
	DefaultLabelWidth = 50
	currentMarker     = "→"
)

// RelativeTime renders t relative to now the way the session picker shows it.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 5*time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.Format("01-02")
	}
}

// SessionLabel renders one picker row: marker, preview padded to width
// display columns, age and message count.
func SessionLabel(s types.SessionSummary, now time.Time, width int) string {
	marker := " "
	if s.IsCurrent {
		marker = currentMarker
	}
	title := s.Preview
	if title == "" {
		title = "(empty session)"
	}
	title = runewidth.FillRight(runewidth.Truncate(title, width, "..."), width)
	return fmt.Sprintf("%s %s  %s · %d msgs", marker, title, RelativeTime(s.ModifiedAt, now), s.MessageCount)
}

// RenderHistory replays a restored conversation to w. User messages the
// agent injected as system text are not shown.
func RenderHistory(w io.Writer, history []types.Message) {
	for _, msg := range history {
		text := strings.TrimSpace(msg.Content.String())
		switch msg.Role {
		case types.RoleUser:
			if text == "" || types.IsSystemText(text) {
				continue
			}
			fmt.Fprintf(w, "user✨ %s\n", text)
		case types.RoleAssistant:
			if text == "" {
				continue
			}
			fmt.Fprintf(w, "%s\n", text)
		}
	}
}
