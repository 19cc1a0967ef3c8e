package dataset

import "sync"

// Registry holds the active dataset for each conversation. Uploading a
// new dataset replaces the previous one; analyzer state derived from
// the old dataset must be invalidated by the caller.
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	names    map[string]string
}

// NewRegistry creates an empty dataset registry.
func NewRegistry() *Registry {
	return &Registry{
		datasets: make(map[string]*Dataset),
		names:    make(map[string]string),
	}
}

// Put registers a dataset for the conversation, replacing any previous
// one.
func (r *Registry) Put(conversationID, name string, ds *Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[conversationID] = ds
	r.names[conversationID] = name
}

// Get returns the conversation's dataset and its upload name.
func (r *Registry) Get(conversationID string) (*Dataset, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.datasets[conversationID]
	return ds, r.names[conversationID], ok
}

// Remove drops the conversation's dataset.
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.datasets, conversationID)
	delete(r.names, conversationID)
}
