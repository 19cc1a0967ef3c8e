package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/chat"
	contextmgmt "github.com/datachat/datachat/internal/context"
)

// Completer produces the downstream model's answer for a submitted
// context window. Implemented by internal/llm.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, msgs []chat.Message) (string, error)
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Message  *chat.Message             `json:"message"`
	Window   contextmgmt.ContextWindow `json:"window"`
	CacheHit bool                      `json:"cache_hit"`
}

// Service orchestrates a conversation turn: append the user message,
// select the context window, consult the response cache, call the
// downstream model on a miss, and append the answer. Turns within one
// conversation run strictly sequentially; independent conversations
// proceed concurrently.
type Service struct {
	store     chat.Store
	windows   *contextmgmt.Manager
	cache     *contextmgmt.ResponseCache
	completer Completer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the conversation service.
func NewService(store chat.Store, windows *contextmgmt.Manager, cache *contextmgmt.ResponseCache, completer Completer) *Service {
	return &Service{
		store:     store,
		windows:   windows,
		cache:     cache,
		completer: completer,
		locks:     make(map[string]*sync.Mutex),
	}
}

// conversationLock returns the mutex serializing turns for one
// conversation.
func (s *Service) conversationLock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// CreateConversation starts a new conversation.
func (s *Service) CreateConversation(ctx context.Context, title string) (*chat.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	return s.store.CreateConversation(ctx, title)
}

// GetConversation fetches one conversation.
func (s *Service) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// ListConversations lists recent conversations.
func (s *Service) ListConversations(ctx context.Context, limit int) ([]chat.Conversation, error) {
	return s.store.ListConversations(ctx, limit)
}

// DeleteConversation removes a conversation, its messages, and its
// cached responses.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.cache.Clear(id)
	return nil
}

// History returns the full raw history of a conversation.
func (s *Service) History(ctx context.Context, conversationID string) ([]chat.Message, error) {
	return s.store.History(ctx, conversationID)
}

// AppendMessage persists a prebuilt message (dataset upload markers and
// the like) at the end of the conversation.
func (s *Service) AppendMessage(ctx context.Context, conversationID string, role chat.Role, parts []chat.ContentPart) (*chat.Message, error) {
	msg := &chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        parts,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Send processes one user turn and returns the assistant's answer.
func (s *Service) Send(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	if _, err := s.AppendMessage(ctx, conversationID, chat.RoleUser, []chat.ContentPart{
		{Kind: chat.PartText, Text: text},
	}); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	return s.completeTurn(ctx, conversationID, false)
}

// Regenerate discards the conversation's trailing assistant message and
// produces a fresh answer, bypassing the response cache on read.
func (s *Service) Regenerate(ctx context.Context, conversationID string) (*TurnResult, error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := s.store.DeleteTrailingAssistantMessage(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, fmt.Errorf("conversation %s has no trailing assistant message", conversationID)
	}

	return s.completeTurn(ctx, conversationID, true)
}

// completeTurn runs window selection, cache lookup, and the downstream
// call for the conversation's current history. Caller holds the
// conversation lock.
func (s *Service) completeTurn(ctx context.Context, conversationID string, skipCacheRead bool) (*TurnResult, error) {
	history, err := s.store.History(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	window := s.windows.Select(history)
	if window.Truncated {
		log.Info("context window truncated",
			"conversation", conversationID,
			"kept", window.KeptMessages, "removed", window.RemovedMessages,
			"tokens", window.EstimatedTokens)
	}

	systemPrompt := SystemPrompt()
	key := contextmgmt.CacheKey(conversationID, systemPrompt, window.Messages)

	var answer string
	cacheHit := false
	if !skipCacheRead {
		if cached, ok := s.cache.Get(key); ok {
			answer = cached.(string)
			cacheHit = true
		}
	}

	if !cacheHit {
		answer, err = s.completer.Complete(ctx, systemPrompt, window.Messages)
		if err != nil {
			// The user's message stays persisted; only this turn fails.
			return nil, fmt.Errorf("downstream completion failed: %w", err)
		}
		s.cache.Put(key, conversationID, answer)
	}

	msg, err := s.AppendMessage(ctx, conversationID, chat.RoleAssistant, []chat.ContentPart{
		{Kind: chat.PartText, Text: answer},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append assistant message: %w", err)
	}

	return &TurnResult{Message: msg, Window: window, CacheHit: cacheHit}, nil
}

// Stats reports how the conversation sits against its context budgets.
func (s *Service) Stats(ctx context.Context, conversationID string) (contextmgmt.ContextStats, error) {
	history, err := s.store.History(ctx, conversationID)
	if err != nil {
		return contextmgmt.ContextStats{}, err
	}
	return s.windows.Stats(history), nil
}

// SystemPrompt is the instruction set sent with every downstream call.
func SystemPrompt() string {
	return "You are a helpful assistant that can discuss uploaded tabular data and images. " +
		"Reference prior analysis results in the conversation when relevant, and answer concisely."
}
