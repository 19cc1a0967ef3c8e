package context

import (
	"fmt"
	"testing"

	"github.com/datachat/datachat/internal/chat"
)

func TestResponseCache_PutGet(t *testing.T) {
	cache := NewResponseCache(10)

	cache.Put("k1", "conv-1", "answer one")

	got, ok := cache.Get("k1")
	if !ok {
		t.Fatal("expected hit immediately after put")
	}
	if got.(string) != "answer one" {
		t.Errorf("got %v, want %q", got, "answer one")
	}

	if _, ok := cache.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestResponseCache_LRUEviction(t *testing.T) {
	cache := NewResponseCache(3)

	cache.Put("k1", "c", 1)
	cache.Put("k2", "c", 2)
	cache.Put("k3", "c", 3)

	// Touch k1 so k2 becomes the least recently accessed.
	if _, ok := cache.Get("k1"); !ok {
		t.Fatal("k1 should be present")
	}

	cache.Put("k4", "c", 4)

	if _, ok := cache.Get("k2"); ok {
		t.Error("k2 should have been evicted as least recently accessed")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if _, ok := cache.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestResponseCache_CapacityBound(t *testing.T) {
	cache := NewResponseCache(5)

	for i := 0; i < 20; i++ {
		cache.Put(fmt.Sprintf("k%d", i), "c", i)
	}

	if cache.Size() != 5 {
		t.Errorf("cache size = %d, want 5", cache.Size())
	}
	// Oldest entries are gone, newest remain.
	if _, ok := cache.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	if _, ok := cache.Get("k19"); !ok {
		t.Error("k19 should be present")
	}
}

func TestResponseCache_ClearScope(t *testing.T) {
	cache := NewResponseCache(10)

	cache.Put("a1", "conv-a", 1)
	cache.Put("a2", "conv-a", 2)
	cache.Put("b1", "conv-b", 3)

	cache.Clear("conv-a")

	if _, ok := cache.Get("a1"); ok {
		t.Error("a1 should be cleared with its scope")
	}
	if _, ok := cache.Get("a2"); ok {
		t.Error("a2 should be cleared with its scope")
	}
	if _, ok := cache.Get("b1"); !ok {
		t.Error("b1 belongs to another scope and must survive")
	}

	cache.Clear("")
	if cache.Size() != 0 {
		t.Errorf("unscoped clear should empty the cache, size=%d", cache.Size())
	}
}

func TestResponseCache_Stats(t *testing.T) {
	cache := NewResponseCache(2)

	cache.Put("k1", "c", 1)
	cache.Get("k1")
	cache.Get("nope")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", stats.HitRate)
	}
}

func TestCacheKey(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleUser, Content: []chat.ContentPart{{Kind: chat.PartText, Text: "hello"}}},
		{Role: chat.RoleAssistant, Content: []chat.ContentPart{{Kind: chat.PartText, Text: "world"}}},
	}

	t.Run("stable", func(t *testing.T) {
		if CacheKey("c1", "sys", msgs) != CacheKey("c1", "sys", msgs) {
			t.Error("identical submissions must produce identical keys")
		}
	})

	t.Run("order sensitive", func(t *testing.T) {
		reversed := []chat.Message{msgs[1], msgs[0]}
		if CacheKey("c1", "sys", msgs) == CacheKey("c1", "sys", reversed) {
			t.Error("reordered windows must not collide")
		}
	})

	t.Run("content sensitive", func(t *testing.T) {
		other := []chat.Message{
			{Role: chat.RoleUser, Content: []chat.ContentPart{{Kind: chat.PartText, Text: "hell"}}},
			{Role: chat.RoleAssistant, Content: []chat.ContentPart{{Kind: chat.PartText, Text: "oworld"}}},
		}
		if CacheKey("c1", "sys", msgs) == CacheKey("c1", "sys", other) {
			t.Error("field boundaries must be part of the hash")
		}
	})

	t.Run("system prompt sensitive", func(t *testing.T) {
		if CacheKey("c1", "sys-a", msgs) == CacheKey("c1", "sys-b", msgs) {
			t.Error("system prompt must be part of the key")
		}
	})
}
