package metacmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/user/gopherlog/internal/types"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{4 * time.Minute, "just now"},
		{5 * time.Minute, "5m ago"},
		{59 * time.Minute, "59m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{10 * 24 * time.Hour, "03-10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now), tt.ago.String())
	}
}

func TestSessionLabel(t *testing.T) {
	now := time.Now()
	s := types.SessionSummary{
		Preview:      "fix the build",
		ModifiedAt:   now.Add(-2 * time.Hour),
		MessageCount: 4,
	}
	label := SessionLabel(s, now, DefaultLabelWidth)
	assert.True(t, strings.HasPrefix(label, "  fix the build"))
	assert.True(t, strings.HasSuffix(label, "2h ago · 4 msgs"))

	s.IsCurrent = true
	s.Preview = strings.Repeat("界", 40)
	label = SessionLabel(s, now, DefaultLabelWidth)
	assert.True(t, strings.HasPrefix(label, currentMarker+" "))
	title := strings.TrimPrefix(label, currentMarker+" ")
	title = title[:strings.Index(title, "  2h ago")]
	assert.Equal(t, DefaultLabelWidth, runewidth.StringWidth(title))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(title), "..."))
}

func TestSessionLabelWidth(t *testing.T) {
	now := time.Now()
	s := types.SessionSummary{Preview: "a preview that is longer than twenty columns", ModifiedAt: now}

	label := SessionLabel(s, now, 20)
	title := strings.TrimPrefix(label, "  ")
	title = title[:strings.Index(title, "  just now")]
	assert.Equal(t, 20, runewidth.StringWidth(title))
	assert.Equal(t, "a preview that is...", strings.TrimSpace(title))
}

func TestRenderHistorySkipsSystemText(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, []types.Message{
		types.UserMessage(types.SystemText("you were interrupted")),
		types.UserMessage("hello"),
		types.UserMessage("   "),
		types.AssistantMessage("hi there"),
		{Role: types.RoleTool, Content: types.PlainText("tool output")},
	})
	assert.Equal(t, "user✨ hello\nhi there\n", buf.String())
}
