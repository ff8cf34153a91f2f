package cache

import (
	"sync"
	"time"
)

// Cache is a TTL cache keyed by a comparable type.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Clear()
	Size() int
}

// InMemoryCache is a map-backed Cache with lazy expiry plus a periodic
// sweep.
type InMemoryCache[K comparable, V any] struct {
	items      map[K]*item[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
}

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a cache. A Set with ttl 0 uses defaultTTL.
func New[K comparable, V any](defaultTTL time.Duration) *InMemoryCache[K, V] {
	c := &InMemoryCache[K, V]{
		items:      make(map[K]*item[V]),
		defaultTTL: defaultTTL,
	}
	go c.sweep()
	return c
}

func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if time.Now().After(it.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return it.value, true
}

func (c *InMemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *InMemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*item[V])
}

func (c *InMemoryCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *InMemoryCache[K, V]) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, it := range c.items {
			if now.After(it.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
