package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/datachat/datachat/internal/chat"
	"github.com/datachat/datachat/internal/config"
	contextmgmt "github.com/datachat/datachat/internal/context"
)

// memStore is an in-memory chat.Store for service tests.
type memStore struct {
	mu    sync.Mutex
	convs map[string]*chat.Conversation
	msgs  map[string][]chat.Message

	// fixedHistory, when set, is returned for every History call,
	// simulating a client retrying the same turn.
	fixedHistory []chat.Message
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[string]*chat.Conversation),
		msgs:  make(map[string][]chat.Message),
	}
}

func (m *memStore) CreateConversation(_ context.Context, title string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := &chat.Conversation{
		ID:        fmt.Sprintf("conv-%d", len(m.convs)+1),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.convs[conv.ID] = conv
	return conv, nil
}

func (m *memStore) GetConversation(_ context.Context, id string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return conv, nil
}

func (m *memStore) ListConversations(_ context.Context, _ int) ([]chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Conversation
	for _, c := range m.convs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return chat.ErrConversationNotFound
	}
	delete(m.convs, id)
	delete(m.msgs, id)
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], *msg)
	if conv, ok := m.convs[msg.ConversationID]; ok {
		conv.MessageCount++
	}
	return nil
}

func (m *memStore) History(_ context.Context, conversationID string) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fixedHistory != nil {
		return m.fixedHistory, nil
	}
	return append([]chat.Message(nil), m.msgs[conversationID]...), nil
}

func (m *memStore) DeleteTrailingAssistantMessage(_ context.Context, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs[conversationID]
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != chat.RoleAssistant {
		return false, nil
	}
	m.msgs[conversationID] = msgs[:len(msgs)-1]
	if conv, ok := m.convs[conversationID]; ok {
		conv.MessageCount--
	}
	return true, nil
}

// countingCompleter answers with a numbered response per call.
type countingCompleter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCompleter) Complete(_ context.Context, _ string, _ []chat.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return fmt.Sprintf("answer %d", c.calls), nil
}

func newTestService(store chat.Store, completer Completer) *Service {
	windows := contextmgmt.NewManager(config.WindowConfig{
		Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 100000,
	})
	cache := contextmgmt.NewResponseCache(100)
	return NewService(store, windows, cache, completer)
}

func TestService_Send(t *testing.T) {
	store := newMemStore()
	completer := &countingCompleter{}
	svc := newTestService(store, completer)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.Title != "New Conversation" {
		t.Errorf("default title = %q", conv.Title)
	}

	result, err := svc.Send(ctx, conv.ID, "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Message.Role != chat.RoleAssistant || result.Message.TextContent() != "answer 1" {
		t.Errorf("unexpected assistant message: %+v", result.Message)
	}
	if result.CacheHit {
		t.Error("first turn cannot be a cache hit")
	}

	history, _ := svc.History(ctx, conv.ID)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != chat.RoleUser || history[1].Role != chat.RoleAssistant {
		t.Error("history order must be user then assistant")
	}
}

func TestService_SendUnknownConversation(t *testing.T) {
	svc := newTestService(newMemStore(), &countingCompleter{})

	if _, err := svc.Send(context.Background(), "nope", "hello"); err == nil {
		t.Fatal("expected error for unknown conversation")
	}
}

func TestService_IdenticalWindowIsCacheHit(t *testing.T) {
	store := newMemStore()
	completer := &countingCompleter{}
	svc := newTestService(store, completer)
	ctx := context.Background()

	conv, _ := svc.CreateConversation(ctx, "retry")

	// Pin the history so both turns submit the identical window, as a
	// client retrying the same request does.
	store.fixedHistory = []chat.Message{
		{ID: "m1", Role: chat.RoleUser, Content: []chat.ContentPart{{Kind: chat.PartText, Text: "same question"}}},
	}

	first, err := svc.Send(ctx, conv.ID, "same question")
	if err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	second, err := svc.Send(ctx, conv.ID, "same question")
	if err != nil {
		t.Fatalf("second Send failed: %v", err)
	}

	if first.CacheHit {
		t.Error("first submission must miss")
	}
	if !second.CacheHit {
		t.Error("identical window must hit the cache")
	}
	if second.Message.TextContent() != first.Message.TextContent() {
		t.Error("cache hit must return the first answer")
	}
	if completer.calls != 1 {
		t.Errorf("downstream called %d times, want 1", completer.calls)
	}
}

func TestService_Regenerate(t *testing.T) {
	store := newMemStore()
	completer := &countingCompleter{}
	svc := newTestService(store, completer)
	ctx := context.Background()

	conv, _ := svc.CreateConversation(ctx, "regen")
	if _, err := svc.Send(ctx, conv.ID, "question"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	result, err := svc.Regenerate(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	// Regeneration bypasses the cache read and produces a fresh answer.
	if result.CacheHit {
		t.Error("regeneration must not read the cache")
	}
	if result.Message.TextContent() != "answer 2" {
		t.Errorf("expected a fresh answer, got %q", result.Message.TextContent())
	}

	history, _ := svc.History(ctx, conv.ID)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (one assistant message swapped)", len(history))
	}

	// A second regenerate on a user-terminated history fails cleanly.
	store.msgs[conv.ID] = history[:1]
	if _, err := svc.Regenerate(ctx, conv.ID); err == nil {
		t.Error("regenerate without trailing assistant message should fail")
	}
}

func TestService_DeleteClearsScopedCache(t *testing.T) {
	store := newMemStore()
	completer := &countingCompleter{}
	svc := newTestService(store, completer)
	ctx := context.Background()

	conv, _ := svc.CreateConversation(ctx, "bye")
	if _, err := svc.Send(ctx, conv.ID, "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if svc.cache.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", svc.cache.Size())
	}

	if err := svc.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if svc.cache.Size() != 0 {
		t.Errorf("conversation's cached responses must be cleared, size=%d", svc.cache.Size())
	}
}

func TestService_Stats(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &countingCompleter{})
	ctx := context.Background()

	conv, _ := svc.CreateConversation(ctx, "stats")
	svc.Send(ctx, conv.ID, "one")
	svc.Send(ctx, conv.ID, "two")

	stats, err := svc.Stats(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalMessages != 4 {
		t.Errorf("total messages = %d, want 4", stats.TotalMessages)
	}
	if !stats.WithinLimits {
		t.Error("short conversation should be within limits")
	}
}
