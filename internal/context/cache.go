package context

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/datachat/datachat/internal/chat"
)

// CacheEntry is a cached downstream response.
type CacheEntry struct {
	Key        string `json:"key"`
	Scope      string `json:"scope"`
	Value      any    `json:"value"`
	Timestamp  int64  `json:"timestamp"`
	AccessTime int64  `json:"access_time"`
}

// CacheStats tracks cache performance metrics.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	HitRate   float64 `json:"hit_rate"`
}

// ResponseCache is a content-addressed LRU cache mapping a submitted
// context window to a previously produced downstream answer. It is a
// shared, global resource: eviction order reflects access order across
// all conversations. A miss is normal control flow, never an error.
type ResponseCache struct {
	maxSize int
	cache   map[string]*list.Element
	lruList *list.List
	mutex   sync.Mutex
	stats   CacheStats
}

// NewResponseCache creates a response cache holding at most maxSize
// entries, evicting the least recently accessed entry beyond that.
func NewResponseCache(maxSize int) *ResponseCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ResponseCache{
		maxSize: maxSize,
		cache:   make(map[string]*list.Element),
		lruList: list.New(),
		stats:   CacheStats{MaxSize: maxSize},
	}
}

// Get retrieves a cached value. A read counts as an access for eviction
// ordering.
func (rc *ResponseCache) Get(key string) (any, bool) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	element, exists := rc.cache[key]
	if !exists {
		rc.stats.Misses++
		rc.updateHitRate()
		return nil, false
	}

	rc.lruList.MoveToFront(element)
	entry := element.Value.(*CacheEntry)
	entry.AccessTime = time.Now().Unix()

	rc.stats.Hits++
	rc.updateHitRate()
	return entry.Value, true
}

// Put stores a value under the given key and scope, evicting the least
// recently accessed entries if the cache is over capacity.
func (rc *ResponseCache) Put(key, scope string, value any) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	now := time.Now().Unix()

	if element, exists := rc.cache[key]; exists {
		entry := element.Value.(*CacheEntry)
		entry.Value = value
		entry.Scope = scope
		entry.Timestamp = now
		entry.AccessTime = now
		rc.lruList.MoveToFront(element)
		return
	}

	entry := &CacheEntry{
		Key:        key,
		Scope:      scope,
		Value:      value,
		Timestamp:  now,
		AccessTime: now,
	}
	rc.cache[key] = rc.lruList.PushFront(entry)

	for len(rc.cache) > rc.maxSize {
		oldest := rc.lruList.Back()
		if oldest == nil {
			break
		}
		rc.removeElement(oldest)
		rc.stats.Evictions++
	}
}

// Clear removes every entry whose scope matches. An empty scope clears
// the whole cache.
func (rc *ResponseCache) Clear(scope string) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if scope == "" {
		rc.cache = make(map[string]*list.Element)
		rc.lruList = list.New()
		return
	}

	var toRemove []*list.Element
	for element := rc.lruList.Back(); element != nil; element = element.Prev() {
		if element.Value.(*CacheEntry).Scope == scope {
			toRemove = append(toRemove, element)
		}
	}
	for _, element := range toRemove {
		rc.removeElement(element)
	}
}

// Size returns the current number of entries.
func (rc *ResponseCache) Size() int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return len(rc.cache)
}

// Stats returns a snapshot of cache metrics.
func (rc *ResponseCache) Stats() CacheStats {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	stats := rc.stats
	stats.Size = len(rc.cache)
	return stats
}

func (rc *ResponseCache) removeElement(element *list.Element) {
	entry := element.Value.(*CacheEntry)
	delete(rc.cache, entry.Key)
	rc.lruList.Remove(element)
}

func (rc *ResponseCache) updateHitRate() {
	total := rc.stats.Hits + rc.stats.Misses
	if total > 0 {
		rc.stats.HitRate = float64(rc.stats.Hits) / float64(total)
	}
}

// CacheKey derives a stable, order-sensitive key for a submission: the
// system prompt plus the ordered window content, hashed per field with
// length prefixes so distinct windows never collide by concatenation.
func CacheKey(scope, systemPrompt string, msgs []chat.Message) string {
	h := sha256.New()
	writeField := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	writeField(scope)
	writeField(systemPrompt)
	for _, msg := range msgs {
		writeField(string(msg.Role))
		for _, part := range msg.Content {
			writeField(string(part.Kind))
			writeField(part.Text)
			writeField(part.ImageURL)
			writeField(part.TableRef)
			writeField(part.TablePreview)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
