package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/cache"
)

const recipePrompt = `Suggest one recipe using only the listed
ingredients. Return JSON: {"title": string, "steps": [string],
"time_minutes": number}`

const fridgeSummaryPrompt = `Summarize this product inventory. Return
JSON: {"summary": string, "expiring_soon": [string]}`

const recognizePrompt = `List the food items visible in this photo.
Return JSON: {"items": [string]}`

// RecipeUseCase generates recipes and fridge summaries, short-
// circuiting the provider chain through the result cache. Recipes keep
// two thresholds: the retention TTL keeps the entry readable for
// display, while the narrower freshness window decides whether a new
// request may reuse it.
type RecipeUseCase struct {
	orchestrator *InferenceOrchestrator
	cache        ports.ResultCache

	recipeTTL   time.Duration
	freshWindow time.Duration
	summaryTTL  time.Duration
}

type RecipeOptions struct {
	RecipeTTL   time.Duration
	FreshWindow time.Duration
	SummaryTTL  time.Duration
}

func NewRecipeUseCase(orchestrator *InferenceOrchestrator, resultCache ports.ResultCache, opts RecipeOptions) *RecipeUseCase {
	if opts.RecipeTTL <= 0 {
		opts.RecipeTTL = 24 * time.Hour
	}
	if opts.FreshWindow <= 0 {
		opts.FreshWindow = 5 * time.Minute
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = 24 * time.Hour
	}
	return &RecipeUseCase{
		orchestrator: orchestrator,
		cache:        resultCache,
		recipeTTL:    opts.RecipeTTL,
		freshWindow:  opts.FreshWindow,
		summaryTTL:   opts.SummaryTTL,
	}
}

// RecognizeIngredients turns a fridge photo into ingredient names,
// ready for SuggestRecipe.
func (uc *RecipeUseCase) RecognizeIngredients(ctx context.Context, photo []byte) ([]string, error) {
	if len(photo) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recognize ingredients", fmt.Errorf("empty photo"))
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskVisionRecognize,
		Image:  photo,
		Prompt: recognizePrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("recognize ingredients: %w", err)
	}

	var recognized struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(result.Raw), &recognized); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode recognized items", err)
	}

	items := make([]string, 0, len(recognized.Items))
	for _, item := range recognized.Items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recognize ingredients", fmt.Errorf("no items recognized"))
	}
	return items, nil
}

func (uc *RecipeUseCase) SuggestRecipe(ctx context.Context, userID string, ingredients []string, category string) (string, error) {
	if len(ingredients) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "suggest recipe", fmt.Errorf("no ingredients"))
	}

	key := cache.RecipeKey(ingredients, category)
	if value, createdAt, err := uc.cache.Get(key); err == nil {
		if time.Since(createdAt) <= uc.freshWindow {
			return value, nil
		}
		// Present but stale for reuse: regenerate below, the old entry
		// stays readable for display until its TTL runs out.
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskRecipe,
		Text:   "Category: " + category + "\nIngredients:\n" + strings.Join(ingredients, "\n"),
		Prompt: recipePrompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate recipe: %w", err)
	}

	uc.cache.Put(key, result.Raw, uc.recipeTTL)
	return result.Raw, nil
}

// LastGenerated returns the cached recipe regardless of freshness, for
// the "show what we just generated" display path.
func (uc *RecipeUseCase) LastGenerated(ingredients []string, category string) (string, error) {
	value, _, err := uc.cache.Get(cache.RecipeKey(ingredients, category))
	return value, err
}

func (uc *RecipeUseCase) FridgeSummary(ctx context.Context, userID string, products []domain.Product) (string, error) {
	key := cache.FridgeSummaryKey(userID)
	if value, _, err := uc.cache.Get(key); err == nil {
		return value, nil
	}

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskFridgeSummary,
		Text:   strings.Join(names, "\n"),
		Prompt: fridgeSummaryPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate fridge summary: %w", err)
	}

	uc.cache.Put(key, result.Raw, uc.summaryTTL)
	return result.Raw, nil
}
