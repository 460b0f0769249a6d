package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

type entry struct {
	value     string
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// MemoryCache is a content-addressed TTL cache for generated results.
// Writers are not serialized beyond the mutex: last writer for a key
// wins, which is fine because regeneration from the same canonical key
// is idempotent. Callers that need freshness narrower than the TTL
// check the returned creation time themselves; the cache only enforces
// retention.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	done    chan struct{}
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) Get(key string) (string, time.Time, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return "", time.Time{}, domain.ErrCacheMiss
	}
	return e.value, e.createdAt, nil
}

func (c *MemoryCache) Put(key string, value string, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() {
	close(c.done)
}

// sweep drops logically expired entries. Expiry itself never depends
// on the sweep running; Get re-checks the TTL.
func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// RecipeKey hashes the canonicalized ingredient set plus category.
// Order, casing and interior whitespace of the ingredient names do not
// affect the key.
func RecipeKey(ingredients []string, category string) string {
	normalized := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		n := normalizeIngredient(ing)
		if n != "" {
			normalized = append(normalized, n)
		}
	}
	sort.Strings(normalized)

	h := sha256.New()
	for _, n := range normalized {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	h.Write([]byte(strings.ToLower(strings.TrimSpace(category))))
	return "recipe:" + hex.EncodeToString(h.Sum(nil))
}

// FridgeSummaryKey is the per-user singleton key.
func FridgeSummaryKey(userID string) string {
	return "fridge:" + userID
}

func normalizeIngredient(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
