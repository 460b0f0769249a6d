package cache

import (
	"testing"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

func TestRecipeKeyPermutationInvariant(t *testing.T) {
	k1 := RecipeKey([]string{"Молоко", "яйца", "   мука  "}, "завтрак")
	k2 := RecipeKey([]string{"МУКА", "молоко", "Яйца"}, "Завтрак")

	if k1 != k2 {
		t.Fatalf("permuted ingredient sets must hash identically: %s vs %s", k1, k2)
	}
}

func TestRecipeKeyDistinguishesSetsAndCategories(t *testing.T) {
	base := RecipeKey([]string{"молоко", "мука"}, "завтрак")

	if RecipeKey([]string{"молоко"}, "завтрак") == base {
		t.Fatalf("different ingredient sets must not collide")
	}
	if RecipeKey([]string{"молоко", "мука"}, "ужин") == base {
		t.Fatalf("different categories must not collide")
	}
}

func TestRecipeKeyIgnoresInnerWhitespace(t *testing.T) {
	if RecipeKey([]string{"сливочное   масло"}, "") != RecipeKey([]string{"Сливочное масло"}, "") {
		t.Fatalf("interior whitespace must not affect the key")
	}
}

func TestGetMissAndHit(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	if _, _, err := c.Get("absent"); !domain.IsKind(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	c.Put("k", "v", time.Hour)
	value, createdAt, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "v" {
		t.Fatalf("unexpected value %q", value)
	}
	if time.Since(createdAt) > time.Minute {
		t.Fatalf("createdAt should be recent, got %v", createdAt)
	}
}

func TestStaleEntryRetainedButNotFresh(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	// An entry written 6 minutes ago: stale for the 5-minute reuse
	// window, still retained under the 24h TTL.
	c.Put("recipe", "cached", 24*time.Hour)
	c.mu.Lock()
	e := c.entries["recipe"]
	e.createdAt = time.Now().Add(-6 * time.Minute)
	c.entries["recipe"] = e
	c.mu.Unlock()

	value, createdAt, err := c.Get("recipe")
	if err != nil {
		t.Fatalf("retention hit expected, got %v", err)
	}
	if value != "cached" {
		t.Fatalf("unexpected value %q", value)
	}
	if time.Since(createdAt) <= 5*time.Minute {
		t.Fatalf("entry should read as stale for the reuse window")
	}
}

func TestExpiredEntryIsMissWithoutSweep(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	c.Put("k", "v", time.Hour)
	c.mu.Lock()
	e := c.entries["k"]
	e.createdAt = time.Now().Add(-2 * time.Hour)
	c.entries["k"] = e
	c.mu.Unlock()

	if _, _, err := c.Get("k"); !domain.IsKind(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss past TTL, got %v", err)
	}
}

func TestLastWriterWins(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	c.Put("k", "first", time.Hour)
	c.Put("k", "second", time.Hour)

	value, _, _ := c.Get("k")
	if value != "second" {
		t.Fatalf("expected last write to win, got %q", value)
	}
}

func TestFridgeSummaryKeyPerUser(t *testing.T) {
	if FridgeSummaryKey("u1") == FridgeSummaryKey("u2") {
		t.Fatalf("fridge keys must be per user")
	}
}
