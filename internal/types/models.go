// internal/types/models.go
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"

	// RoleCheckpoint tags checkpoint marker records in a session log.
	RoleCheckpoint Role = "_checkpoint"
)

const (
	systemOpen  = "<system>"
	systemClose = "</system>"
)

// SystemText wraps text the way injected system messages are stored.
func SystemText(text string) string {
	return systemOpen + text + systemClose
}

// IsSystemText reports whether text is a wrapped system-injected message.
func IsSystemText(text string) bool {
	return strings.HasPrefix(text, systemOpen) && strings.HasSuffix(text, systemClose)
}

// ContentPart is one element of a structured content list. Text parts were
// encoded as a bare string or as an object carrying a "text" field; anything
// else is kept opaque.
type ContentPart struct {
	Text   string
	Raw    json.RawMessage
	isText bool
}

func TextPart(text string) ContentPart {
	return ContentPart{Text: text, isText: true}
}

func OtherPart(raw json.RawMessage) ContentPart {
	return ContentPart{Raw: raw}
}

func (p ContentPart) IsText() bool {
	return p.isText
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	if !p.isText {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "text", Text: p.Text})
}

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	raw := append(json.RawMessage(nil), data...)
	*p = ContentPart{Raw: raw}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Text, p.isText = s, true
		return nil
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Text != nil {
		p.Text, p.isText = *obj.Text, true
	}
	return nil
}

// Content is either plain text or a list of parts.
type Content struct {
	text       string
	parts      []ContentPart
	structured bool
}

func PlainText(text string) Content {
	return Content{text: text}
}

func Parts(parts ...ContentPart) Content {
	return Content{parts: parts, structured: true}
}

// IsStructured reports whether the content is a part list.
func (c Content) IsStructured() bool {
	return c.structured
}

func (c Content) Items() []ContentPart {
	return c.parts
}

// FirstText returns the plain text, or the text of the first part when that
// part is textual.
func (c Content) FirstText() (string, bool) {
	if !c.structured {
		return c.text, c.text != ""
	}
	if len(c.parts) == 0 || !c.parts[0].IsText() {
		return "", false
	}
	return c.parts[0].Text, true
}

// String joins every text part with newlines.
func (c Content) String() string {
	if !c.structured {
		return c.text
	}
	var texts []string
	for _, p := range c.parts {
		if p.IsText() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.structured {
		parts := c.parts
		if parts == nil {
			parts = []ContentPart{}
		}
		return json.Marshal(parts)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Content{}
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &c.text)
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.parts, c.structured = parts, true
		return nil
	default:
		return fmt.Errorf("unsupported content shape: %.20s", data)
	}
}

type Message struct {
	Role       Role            `json:"role"`
	Content    Content         `json:"content"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: PlainText(text)}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: PlainText(text)}
}

type CheckpointMarker struct {
	ID int `json:"id"`
}

var errEmptyEntry = errors.New("log entry has neither message nor checkpoint")

// LogEntry is one record of a session log: a message or a checkpoint marker.
// Entries decoded from disk remember their exact encoding.
type LogEntry struct {
	Message    *Message
	Checkpoint *CheckpointMarker
	raw        json.RawMessage
}

func MessageEntry(m Message) LogEntry {
	return LogEntry{Message: &m}
}

func CheckpointEntry(id int) LogEntry {
	return LogEntry{Checkpoint: &CheckpointMarker{ID: id}}
}

func (e LogEntry) IsCheckpoint() bool {
	return e.Checkpoint != nil
}

// Raw returns the encoding the entry was decoded from, if any.
func (e LogEntry) Raw() json.RawMessage {
	return e.raw
}

func (e LogEntry) MarshalJSON() ([]byte, error) {
	switch {
	case len(e.raw) > 0:
		return e.raw, nil
	case e.Checkpoint != nil:
		return json.Marshal(struct {
			Role Role `json:"role"`
			ID   int  `json:"id"`
		}{Role: RoleCheckpoint, ID: e.Checkpoint.ID})
	case e.Message != nil:
		return json.Marshal(e.Message)
	default:
		return nil, errEmptyEntry
	}
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*e = LogEntry{raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}
	switch probe.Role {
	case RoleCheckpoint:
		var cp CheckpointMarker
		if err := json.Unmarshal(data, &cp); err != nil {
			return err
		}
		e.Checkpoint = &cp
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		e.Message = &m
	default:
		return fmt.Errorf("unknown record role %q", probe.Role)
	}
	return nil
}

// WorkDir is the registry record of one working directory.
type WorkDir struct {
	Path          string     `json:"path"`
	LastSessionID *SessionID `json:"last_session_id"`
}

// Metadata is the whole registry document.
type Metadata struct {
	WorkDirs []WorkDir `json:"work_dirs"`
}

type SessionSummary struct {
	ID              SessionID `json:"id"`
	Path            string    `json:"path"`
	ModifiedAt      time.Time `json:"modified_at"`
	Size            int64     `json:"size"`
	MessageCount    int       `json:"message_count"`
	CheckpointCount int       `json:"checkpoint_count"`
	Preview         string    `json:"preview,omitempty"`
	IsCurrent       bool      `json:"is_current"`
}
