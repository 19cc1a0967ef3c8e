package chat

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartKind identifies the kind of a message content part.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartTable PartKind = "table"
)

// ContentPart is one element of a message body. Exactly one of the
// payload fields is set, matching Kind.
type ContentPart struct {
	Kind PartKind `json:"type"`

	// Text payload for PartText.
	Text string `json:"text,omitempty"`

	// ImageURL payload for PartImage (URL or data URI).
	ImageURL string `json:"image_url,omitempty"`

	// TableRef and TablePreview payload for PartTable. TablePreview is
	// the serialized excerpt actually sent downstream; the full dataset
	// lives with the conversation, not in the message.
	TableRef     string `json:"table_ref,omitempty"`
	TablePreview string `json:"table_preview,omitempty"`
}

// Message is the ordered unit of a conversation. Immutable once
// persisted, except for the InProgress flag used while a response is
// streaming.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           Role          `json:"role"`
	Content        []ContentPart `json:"content"`
	CreatedAt      time.Time     `json:"created_at"`
	InProgress     bool          `json:"in_progress,omitempty"`
}

// TextContent concatenates the text parts of the message.
func (m Message) TextContent() string {
	var out string
	for _, part := range m.Content {
		if part.Kind == PartText {
			out += part.Text
		}
	}
	return out
}

// Conversation is an append-only sequence of messages plus bookkeeping.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
