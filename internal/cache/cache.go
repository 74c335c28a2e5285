package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ResponseCache holds rendered JSON responses for expensive read endpoints.
// Entries are keyed per user and request so one user's cached view is never
// served to another. Entries expire after the TTL and the cache is bounded,
// evicting the oldest entry when full.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byUser  map[uint]map[string]struct{}
	ttl     time.Duration
	maxSize int
}

type entry struct {
	body      []byte
	userID    uint
	createdAt time.Time
}

// New creates a cache with the given TTL and max entries.
func New(ttl time.Duration, maxSize int) *ResponseCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &ResponseCache{
		entries: make(map[string]*entry, maxSize),
		byUser:  make(map[uint]map[string]struct{}),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached body for a user's request, if present and fresh.
func (c *ResponseCache) Get(userID uint, path string) ([]byte, bool) {
	key := makeKey(userID, path)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		c.mu.Lock()
		c.remove(key, e.userID)
		c.mu.Unlock()
		return nil, false
	}
	return e.body, true
}

// Put stores a rendered response for a user's request.
func (c *ResponseCache) Put(userID uint, path string, body []byte) {
	key := makeKey(userID, path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &entry{body: body, userID: userID, createdAt: time.Now()}
	if c.byUser[userID] == nil {
		c.byUser[userID] = make(map[string]struct{})
	}
	c.byUser[userID][key] = struct{}{}
}

// Invalidate drops every cached response of the given users. Write paths
// call it so readers never see stale views for a full TTL window.
func (c *ResponseCache) Invalidate(userIDs ...uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, userID := range userIDs {
		for key := range c.byUser[userID] {
			delete(c.entries, key)
		}
		delete(c.byUser, userID)
	}
}

// Sweep removes expired entries; run it periodically from a janitor
// goroutine.
func (c *ResponseCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if time.Since(e.createdAt) > c.ttl {
			c.remove(key, e.userID)
		}
	}
}

// Size returns the number of cached entries.
func (c *ResponseCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// remove expects c.mu held for writing.
func (c *ResponseCache) remove(key string, userID uint) {
	delete(c.entries, key)
	if keys, ok := c.byUser[userID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byUser, userID)
		}
	}
}

// evictOldest expects c.mu held for writing.
func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldestUser uint
	var oldestTime time.Time

	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldestTime) {
			oldestKey = k
			oldestUser = e.userID
			oldestTime = e.createdAt
		}
	}
	if oldestKey != "" {
		c.remove(oldestKey, oldestUser)
	}
}

// makeKey produces a deterministic hash from user + request path.
func makeKey(userID uint, path string) string {
	h := sha256.New()
	h.Write([]byte{byte(userID), byte(userID >> 8), byte(userID >> 16), byte(userID >> 24), 0})
	h.Write([]byte(path))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
