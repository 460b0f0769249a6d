package ports

import (
	"context"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

// PhotoIngestor accepts photo-derived work. Enqueue is fire-and-forget;
// completion is observed through the StatusSink.
type PhotoIngestor interface {
	Enqueue(ctx context.Context, userID string, payload []byte, kind domain.TaskKind) error
}

// ShoppingService drives the label/session flow.
type ShoppingService interface {
	IngestLabel(ctx context.Context, userID string, photo []byte) error
	CloseSession(ctx context.Context, sessionID string) (*domain.MatchResult, error)
}

// RecipeService generates recipes and fridge summaries with cache
// short-circuiting.
type RecipeService interface {
	RecognizeIngredients(ctx context.Context, photo []byte) ([]string, error)
	SuggestRecipe(ctx context.Context, userID string, ingredients []string, category string) (string, error)
	FridgeSummary(ctx context.Context, userID string, products []domain.Product) (string, error)
}
