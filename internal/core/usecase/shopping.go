package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
)

const labelOCRPrompt = `Extract the nutrition label into JSON:
{"name": string, "brand": string, "weight": string,
 "calories": number, "protein": number, "fat": number,
 "carbs": number, "fiber": number}
Use null for values not on the label.`

// ShoppingUseCase drives one shopping session: scanned label photos
// accumulate against the user's open session, and closing the session
// runs exactly one reconciliation pass against the user's unmatched
// products.
type ShoppingUseCase struct {
	orchestrator *InferenceOrchestrator
	matcher      *Matcher
	products     ports.ProductRepository
	labels       ports.LabelRepository
	reporter     ports.SessionReporter
	logger       *slog.Logger
}

func NewShoppingUseCase(
	orchestrator *InferenceOrchestrator,
	matcher *Matcher,
	products ports.ProductRepository,
	labels ports.LabelRepository,
	reporter ports.SessionReporter,
	logger *slog.Logger,
) *ShoppingUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShoppingUseCase{
		orchestrator: orchestrator,
		matcher:      matcher,
		products:     products,
		labels:       labels,
		reporter:     reporter,
		logger:       logger,
	}
}

type labelExtraction struct {
	Name     string   `json:"name"`
	Brand    string   `json:"brand"`
	Weight   string   `json:"weight"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Fat      *float64 `json:"fat"`
	Carbs    *float64 `json:"carbs"`
	Fiber    *float64 `json:"fiber"`
}

func (uc *ShoppingUseCase) IngestLabel(ctx context.Context, userID string, photo []byte) error {
	session, err := uc.labels.EnsureOpenSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("ensure open session: %w", err)
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskLabelOCR,
		Image:  photo,
		Prompt: labelOCRPrompt,
	})
	if err != nil {
		return fmt.Errorf("label extraction: %w", err)
	}

	var extraction labelExtraction
	if err := json.Unmarshal([]byte(result.Raw), &extraction); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "decode label extraction", err)
	}
	if strings.TrimSpace(extraction.Name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ingest label", fmt.Errorf("label has no product name"))
	}

	label := &domain.Label{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		OwnerID:   userID,
		Name:      strings.TrimSpace(extraction.Name),
		Brand:     strings.TrimSpace(extraction.Brand),
		Weight:    strings.TrimSpace(extraction.Weight),
		Nutrients: domain.Nutrients{
			Calories: extraction.Calories,
			Protein:  extraction.Protein,
			Fat:      extraction.Fat,
			Carbs:    extraction.Carbs,
			Fiber:    extraction.Fiber,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.labels.SaveLabel(ctx, label); err != nil {
		return fmt.Errorf("save label: %w", err)
	}
	return nil
}

// CloseSession transitions the session, runs the single matching pass
// and writes each matched pair back as conditional per-record updates.
// A product claimed concurrently drops out of the written pairs; the
// pass itself is never retried.
func (uc *ShoppingUseCase) CloseSession(ctx context.Context, sessionID string) (*domain.MatchResult, error) {
	session, err := uc.labels.CloseSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	labels, err := uc.labels.ListSessionLabels(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load session labels: %w", err)
	}
	products, err := uc.products.ListUnmatchedProducts(ctx, session.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load unmatched products: %w", err)
	}

	result := uc.matcher.Match(products, labels)
	uc.persistPairs(ctx, result, products, labels)

	uc.logger.Info("session_matched",
		"session_id", session.ID,
		"pairs", len(result.Pairs),
		"unmatched_products", len(result.UnmatchedProducts),
		"unmatched_labels", len(result.UnmatchedLabels),
	)
	return result, nil
}

// ExportReport renders a closed session's result into a deliverable
// artifact (xlsx).
func (uc *ShoppingUseCase) ExportReport(session *domain.Session, result *domain.MatchResult) ([]byte, error) {
	if uc.reporter == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export report", fmt.Errorf("no reporter configured"))
	}
	return uc.reporter.Render(session, result)
}

func (uc *ShoppingUseCase) persistPairs(ctx context.Context, result *domain.MatchResult, products []domain.Product, labels []domain.Label) {
	productByID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}
	labelByID := make(map[string]domain.Label, len(labels))
	for _, l := range labels {
		labelByID[l.ID] = l
	}

	kept := result.Pairs[:0]
	for _, pair := range result.Pairs {
		product := productByID[pair.ProductID]
		label := labelByID[pair.LabelID]
		merged := product.Nutrients.Merge(label.Nutrients)

		if err := uc.products.UpdateMatched(ctx, pair.ProductID, pair.LabelID, merged); err != nil {
			uc.logger.Warn("match_write_skipped", "product_id", pair.ProductID, "label_id", pair.LabelID, "error", err)
			continue
		}
		if err := uc.labels.SetLabelMatched(ctx, pair.LabelID, pair.ProductID); err != nil {
			uc.logger.Warn("label_match_write_failed", "label_id", pair.LabelID, "error", err)
		}
		kept = append(kept, pair)
	}
	result.Pairs = kept
}
