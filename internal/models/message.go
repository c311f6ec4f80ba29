package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles the backend accepts
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Footnote is a cited verse attached to an assistant message
type Footnote struct {
	Reference string `json:"reference"` // "2:255"
	Arabic    string `json:"arabic"`
	English   string `json:"english"`
	RefID     string `json:"refId,omitempty"`
}

// Message is one turn of a conversation as stored by the backend
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Timestamp  Timestamp  `json:"createdAt,omitempty"`
	Footnotes  []Footnote `json:"footnotes,omitempty"`
	References []string   `json:"references,omitempty"`
}

// FootnoteFor returns the footnote matching ref, or nil
func (m Message) FootnoteFor(ref string) *Footnote {
	for i := range m.Footnotes {
		if m.Footnotes[i].Reference == ref {
			return &m.Footnotes[i]
		}
	}
	return nil
}

// Conversation is a chat owned by the current user
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt Timestamp `json:"createdAt,omitempty"`
}

// DisplayTitle returns the title, or the placeholder the web client shows
func (c Conversation) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return DefaultChatTitle
	}
	return c.Title
}

// LastAssistantMessage returns the most recent assistant message, or nil
func (c Conversation) LastAssistantMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return &c.Messages[i]
		}
	}
	return nil
}

// Clone returns a copy whose message slice can be appended to independently
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// Verse is the lookup result for a single reference
type Verse struct {
	Reference   string `json:"reference"`
	Arabic      string `json:"arabic"`
	Translation string `json:"translation"`
}

// Timestamp accepts both RFC 3339 and the zone-less ISO-8601 strings the
// backend emits for naive UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
