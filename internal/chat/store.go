package chat

import (
	"context"
	"errors"
)

// ErrConversationNotFound reports an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

// Store persists conversations and their ordered messages. Implemented
// by internal/store; declared here so the conversation service depends
// only on the behavior it needs.
type Store interface {
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// AppendMessage adds a message to the end of its conversation and
	// bumps the conversation's message count.
	AppendMessage(ctx context.Context, msg *Message) error

	// History returns the conversation's messages in creation order.
	History(ctx context.Context, conversationID string) ([]Message, error)

	// DeleteTrailingAssistantMessage removes the last message of the
	// conversation if it is an assistant message. It reports whether a
	// message was removed.
	DeleteTrailingAssistantMessage(ctx context.Context, conversationID string) (bool, error)
}
