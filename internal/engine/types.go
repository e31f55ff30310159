package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one stored turn of the conversation.
// Ts is the only stable identity of a message and is unique per log. Conversation
// turns are stored in ts order; a summary or marker inserted where no ts was free
// carries a fresh ts and keeps its place by stored position (see OrderKeys).
type ChatMessage struct {
	Role MessageRole `json:"role"`
	// Content is the text of the turn. For structured content it is the text of the
	// blocks, and Blocks holds the payload as stored.
	Content string          `json:"content"`
	Blocks  json.RawMessage `json:"-"`
	Ts      int64           `json:"ts"`

	// Set only on a summary message.
	IsSummary  bool   `json:"isSummary,omitempty"`
	CondenseID string `json:"condenseId,omitempty"`
	// Set on an ordinary message that a summary replaced.
	CondenseParent string `json:"condenseParent,omitempty"`

	// Sliding-window truncation sentinel and the pointer back to it.
	IsTruncationMarker bool   `json:"isTruncationMarker,omitempty"`
	TruncationID       string `json:"truncationId,omitempty"`
	TruncationParent   string `json:"truncationParent,omitempty"`
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	if m.CondenseParent != "" && m.TruncationParent != "" {
		return fmt.Errorf("message %d has both condenseParent and truncationParent", m.Ts)
	}
	if m.IsSummary && m.CondenseID == "" {
		return fmt.Errorf("summary message %d has no condenseId", m.Ts)
	}
	if m.IsTruncationMarker && m.TruncationID == "" {
		return fmt.Errorf("truncation marker %d has no truncationId", m.Ts)
	}
	return nil
}

// MarshalJSON writes Blocks as the content when the message has structured content.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type plain ChatMessage
	if len(m.Blocks) == 0 {
		return json.Marshal(plain(m))
	}
	return json.Marshal(struct {
		plain
		Content json.RawMessage `json:"content"`
	}{plain(m), m.Blocks})
}

// UnmarshalJSON accepts content as a string or as any other JSON value (a block list).
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type plain ChatMessage
	var raw struct {
		plain
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = ChatMessage(raw.plain)
	m.Content, m.Blocks = "", nil

	c := bytes.TrimSpace(raw.Content)
	switch {
	case len(c) == 0 || bytes.Equal(c, []byte("null")):
	case c[0] == '"':
		return json.Unmarshal(c, &m.Content)
	default:
		m.Blocks = append(json.RawMessage(nil), c...)
		m.Content = BlocksText(c)
	}
	return nil
}

// BlocksText returns the text of the "text" blocks in a block list, one per line.
// Payloads that are not a block list are returned verbatim.
func BlocksText(blocks json.RawMessage) string {
	var list []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(blocks, &list); err != nil {
		return string(blocks)
	}
	var parts []string
	for _, b := range list {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// OrderKeys returns a sort key per stored message. A message in ts order gets 2*ts.
// A message whose ts is not below its successor's sorts just before that successor.
// For a log sorted by ts the keys are simply 2*ts.
func OrderKeys(msgs []ChatMessage) []int64 {
	keys := make([]int64, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if i == len(msgs)-1 || msgs[i].Ts < msgs[i+1].Ts {
			keys[i] = 2 * msgs[i].Ts
		} else {
			keys[i] = keys[i+1] - 1
		}
	}
	return keys
}

// Hidden reports whether the message carries a removal marker of either kind.
func (m ChatMessage) Hidden() bool {
	return m.CondenseParent != "" || m.TruncationParent != ""
}

// CloneMessages returns a shallow copy of msgs so callers can rewrite fields
// without touching the caller's slice.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
	TotalCost  float64 // USD, zero when the provider or model price is unknown
}

// StreamEvent is one chunk of a streamed model reply.
type StreamEvent struct {
	Type  string // "text" | "usage"
	Text  string // for text
	Usage Usage  // for usage
}

const (
	StreamEventText  = "text"
	StreamEventUsage = "usage"
)

// LLMClient abstracts the model capability used for condensation.
// The event channel is closed when the reply ends; the error channel receives
// at most one error and is closed afterwards.
type LLMClient interface {
	CreateMessage(ctx context.Context, systemPrompt string, messages []ChatMessage) (<-chan StreamEvent, <-chan error)
}

// ModelDescriber is implemented by clients that know which model they call.
type ModelDescriber interface {
	ModelID() string
}

// TokenCounter is the external token oracle.
type TokenCounter interface {
	CountTokens(ctx context.Context, messages []ChatMessage) (int, error)
}

// ClientValidator is implemented by clients that can tell whether they are usable,
// e.g. a provider client without an API key.
type ClientValidator interface {
	Validate() error
}

// CheckClient returns an error when c cannot be used to generate.
func CheckClient(c LLMClient) error {
	if c == nil {
		return errors.New("no model client configured")
	}
	if v, ok := c.(ClientValidator); ok {
		return v.Validate()
	}
	return nil
}
