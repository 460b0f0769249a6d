package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/cache"
)

type cacheFake struct {
	values   map[string]string
	created  map[string]time.Time
	putCalls int
}

func newCacheFake() *cacheFake {
	return &cacheFake{values: make(map[string]string), created: make(map[string]time.Time)}
}

func (c *cacheFake) Get(key string) (string, time.Time, error) {
	value, ok := c.values[key]
	if !ok {
		return "", time.Time{}, domain.ErrCacheMiss
	}
	return value, c.created[key], nil
}

func (c *cacheFake) Put(key, value string, _ time.Duration) {
	c.putCalls++
	c.values[key] = value
	c.created[key] = time.Now()
}

func newRecipeFixture(t *testing.T, provider ports.InferenceProvider, cacheFake *cacheFake) *RecipeUseCase {
	t.Helper()
	orch := newTestOrchestrator(map[domain.TaskKind][]ports.InferenceProvider{
		domain.TaskRecipe:          {provider},
		domain.TaskFridgeSummary:   {provider},
		domain.TaskVisionRecognize: {provider},
	})
	return NewRecipeUseCase(orch, cacheFake, RecipeOptions{
		RecipeTTL:   24 * time.Hour,
		FreshWindow: 5 * time.Minute,
		SummaryTTL:  time.Hour,
	})
}

func TestSuggestRecipeFreshHitSkipsProviders(t *testing.T) {
	provider := &providerFake{id: "llm", status: 200, response: `{"title":"regenerated"}`}
	store := newCacheFake()
	uc := newRecipeFixture(t, provider, store)

	ingredients := []string{"молоко", "яйца", "мука"}
	key := cache.RecipeKey(ingredients, "завтрак")
	store.values[key] = `{"title":"cached"}`
	store.created[key] = time.Now().Add(-time.Minute)

	got, err := uc.SuggestRecipe(context.Background(), "u1", ingredients, "завтрак")
	if err != nil {
		t.Fatalf("SuggestRecipe() error = %v", err)
	}
	if got != `{"title":"cached"}` {
		t.Fatalf("fresh entry must short-circuit, got %q", got)
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called on a fresh hit, got %d calls", provider.calls)
	}
}

func TestSuggestRecipeStaleEntryRegenerates(t *testing.T) {
	provider := &providerFake{id: "llm", status: 200, response: `{"title":"regenerated"}`}
	store := newCacheFake()
	uc := newRecipeFixture(t, provider, store)

	ingredients := []string{"молоко", "яйца"}
	key := cache.RecipeKey(ingredients, "")
	store.values[key] = `{"title":"stale"}`
	store.created[key] = time.Now().Add(-time.Hour)

	got, err := uc.SuggestRecipe(context.Background(), "u1", ingredients, "")
	if err != nil {
		t.Fatalf("SuggestRecipe() error = %v", err)
	}
	if got != `{"title":"regenerated"}` {
		t.Fatalf("stale-for-reuse entry must regenerate, got %q", got)
	}
	if provider.calls != 1 || store.putCalls != 1 {
		t.Fatalf("expected one generation and one cache write, got calls=%d puts=%d", provider.calls, store.putCalls)
	}

	// LastGenerated ignores freshness entirely.
	if last, err := uc.LastGenerated(ingredients, ""); err != nil || last != `{"title":"regenerated"}` {
		t.Fatalf("LastGenerated() = %q, %v", last, err)
	}
}

func TestSuggestRecipePermutationReusesEntry(t *testing.T) {
	provider := &providerFake{id: "llm", status: 200, response: `{"title":"first"}`}
	store := newCacheFake()
	uc := newRecipeFixture(t, provider, store)

	if _, err := uc.SuggestRecipe(context.Background(), "u1", []string{"молоко", "яйца", "мука"}, "выпечка"); err != nil {
		t.Fatalf("SuggestRecipe() error = %v", err)
	}
	if _, err := uc.SuggestRecipe(context.Background(), "u1", []string{"Мука", "ЯЙЦА", "молоко"}, "выпечка"); err != nil {
		t.Fatalf("SuggestRecipe() error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("reordered ingredient list must hit the same entry, got %d calls", provider.calls)
	}
}

func TestSuggestRecipeRejectsEmptyIngredients(t *testing.T) {
	uc := newRecipeFixture(t, &providerFake{id: "llm"}, newCacheFake())
	_, err := uc.SuggestRecipe(context.Background(), "u1", nil, "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRecognizeIngredientsFiltersEmptyItems(t *testing.T) {
	provider := &providerFake{id: "v", status: 200, response: `{"items":["Молоко","  ","Яйца"]}`}
	uc := newRecipeFixture(t, provider, newCacheFake())

	items, err := uc.RecognizeIngredients(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("RecognizeIngredients() error = %v", err)
	}
	if len(items) != 2 || items[0] != "Молоко" || items[1] != "Яйца" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestRecognizeIngredientsRejectsEmptyResult(t *testing.T) {
	provider := &providerFake{id: "v", status: 200, response: `{"items":[]}`}
	uc := newRecipeFixture(t, provider, newCacheFake())

	_, err := uc.RecognizeIngredients(context.Background(), []byte("jpeg"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFridgeSummaryCachedPerUser(t *testing.T) {
	provider := &providerFake{id: "llm", status: 200, response: `{"summary":"ok"}`}
	store := newCacheFake()
	uc := newRecipeFixture(t, provider, store)

	products := []domain.Product{{Name: "Молоко"}, {Name: "Сыр"}}
	if _, err := uc.FridgeSummary(context.Background(), "u1", products); err != nil {
		t.Fatalf("FridgeSummary() error = %v", err)
	}
	if _, err := uc.FridgeSummary(context.Background(), "u1", products); err != nil {
		t.Fatalf("FridgeSummary() error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("second call for the same user must hit the cache, got %d calls", provider.calls)
	}

	if _, err := uc.FridgeSummary(context.Background(), "u2", products); err != nil {
		t.Fatalf("FridgeSummary() error = %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("a different user must not share the entry, got %d calls", provider.calls)
	}
}
