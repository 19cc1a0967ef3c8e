package analyze

import (
	"sync"
	"time"

	"github.com/datachat/datachat/internal/dataset"
)

// State is the prepared, reusable context for AI-driven analysis of one
// conversation's dataset: the (possibly sampled) data plus the schema
// prompt derived from it. Building it is the expensive part of the AI
// path, so it is cached per conversation and reused across queries
// until the conversation uploads a new dataset.
type State struct {
	ConversationID string
	Data           *dataset.Dataset
	SourceRows     int
	Sampled        bool
	SchemaPrompt   string
	CreatedAt      time.Time
}

type stateEntry struct {
	once  sync.Once
	state *State
	err   error
}

// StateCache holds at most one analyzer state per conversation. The map
// is guarded by a single mutex; initialization runs outside the lock
// behind a per-entry once, so a second request for the same conversation
// waits for the in-flight initialization instead of duplicating it, and
// requests for different conversations never block each other.
type StateCache struct {
	mu      sync.Mutex
	entries map[string]*stateEntry
}

// NewStateCache creates an empty analyzer state cache.
func NewStateCache() *StateCache {
	return &StateCache{entries: make(map[string]*stateEntry)}
}

// GetOrInit returns the cached state for the conversation, running init
// exactly once per entry. A failed init is not cached.
func (sc *StateCache) GetOrInit(conversationID string, init func() (*State, error)) (*State, error) {
	sc.mu.Lock()
	entry, ok := sc.entries[conversationID]
	if !ok {
		entry = &stateEntry{}
		sc.entries[conversationID] = entry
	}
	sc.mu.Unlock()

	entry.once.Do(func() {
		entry.state, entry.err = init()
	})

	if entry.err != nil {
		// Drop the failed entry so a later query can retry
		// initialization.
		sc.mu.Lock()
		if sc.entries[conversationID] == entry {
			delete(sc.entries, conversationID)
		}
		sc.mu.Unlock()
		return nil, entry.err
	}
	return entry.state, nil
}

// Invalidate discards the conversation's state. Called when a new
// dataset is uploaded for the conversation.
func (sc *StateCache) Invalidate(conversationID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.entries, conversationID)
}

// Len returns the number of cached states.
func (sc *StateCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.entries)
}

// Conversations lists the conversation ids with a cached state.
func (sc *StateCache) Conversations() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ids := make([]string, 0, len(sc.entries))
	for id := range sc.entries {
		ids = append(ids, id)
	}
	return ids
}
