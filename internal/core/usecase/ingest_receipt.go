package usecase

import (
	"bytes"
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

const receiptOCRPrompt = `Extract the receipt into JSON:
{"store": string, "total": number, "currency": string,
 "items": [{"name": string, "price": number, "quantity": number}]}`

const receiptNormalizePrompt = `For each product name below return JSON:
{"items": [{"name": string, "category": string,
 "calories": number, "protein": number, "fat": number,
 "carbs": number, "fiber": number}]}
Keep item order. Use null for unknown values.`

var pdfMagic = []byte("%PDF-")

// ReceiptIngestUseCase turns one receipt photo (or e-receipt PDF) into
// a persisted receipt with N products. Extraction failures degrade per
// item: a receipt with ten lines and one unreadable line still yields
// nine normalized products plus one bare-name product.
type ReceiptIngestUseCase struct {
	orchestrator *InferenceOrchestrator
	repo         ports.ProductRepository
	pdfExtractor ports.ReceiptTextExtractor
	logger       *slog.Logger
}

func NewReceiptIngestUseCase(
	orchestrator *InferenceOrchestrator,
	repo ports.ProductRepository,
	pdfExtractor ports.ReceiptTextExtractor,
	logger *slog.Logger,
) *ReceiptIngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptIngestUseCase{
		orchestrator: orchestrator,
		repo:         repo,
		pdfExtractor: pdfExtractor,
		logger:       logger,
	}
}

type receiptExtraction struct {
	Store    string  `json:"store"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
	Items    []struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
	} `json:"items"`
}

type normalizedItems struct {
	Items []struct {
		Name     string   `json:"name"`
		Category string   `json:"category"`
		Calories *float64 `json:"calories"`
		Protein  *float64 `json:"protein"`
		Fat      *float64 `json:"fat"`
		Carbs    *float64 `json:"carbs"`
		Fiber    *float64 `json:"fiber"`
	} `json:"items"`
}

func (uc *ReceiptIngestUseCase) IngestReceipt(ctx context.Context, ownerID string, payload []byte) (*domain.Receipt, error) {
	extraction, err := uc.extract(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(extraction.Items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest receipt", fmt.Errorf("no line items extracted"))
	}

	now := time.Now().UTC()
	receipt := &domain.Receipt{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Store:     extraction.Store,
		Total:     extraction.Total,
		Currency:  extraction.Currency,
		CreatedAt: now,
	}

	products := uc.buildProducts(ctx, ownerID, extraction, now)

	if err := uc.repo.CreateReceipt(ctx, receipt, products); err != nil {
		return nil, fmt.Errorf("persist receipt: %w", err)
	}
	return receipt, nil
}

// extract routes PDFs through local text extraction plus the text
// chain, photos through the vision chain.
func (uc *ReceiptIngestUseCase) extract(ctx context.Context, payload []byte) (*receiptExtraction, error) {
	task := domain.InferenceTask{
		Kind:   domain.TaskReceiptOCR,
		Image:  payload,
		Prompt: receiptOCRPrompt,
	}
	if bytes.HasPrefix(payload, pdfMagic) && uc.pdfExtractor != nil {
		text, err := uc.pdfExtractor.Extract(payload)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "extract pdf receipt", err)
		}
		task = domain.InferenceTask{
			Kind:   domain.TaskClassifyText,
			Text:   text,
			Prompt: receiptOCRPrompt,
		}
	}

	result, err := uc.orchestrator.Run(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("receipt extraction: %w", err)
	}

	var extraction receiptExtraction
	if err := json.Unmarshal([]byte(result.Raw), &extraction); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode receipt extraction", err)
	}
	return &extraction, nil
}

// buildProducts normalizes all line items with one batched call. A
// failed or short batch leaves the affected items with their raw name
// and no nutrients instead of failing the receipt.
func (uc *ReceiptIngestUseCase) buildProducts(ctx context.Context, ownerID string, extraction *receiptExtraction, now time.Time) []domain.Product {
	normalized := uc.normalize(ctx, extraction)

	products := make([]domain.Product, 0, len(extraction.Items))
	for i, raw := range extraction.Items {
		quantity := raw.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		product := domain.Product{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Name:      strings.TrimSpace(raw.Name),
			Quantity:  quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if normalized != nil && i < len(normalized.Items) {
			n := normalized.Items[i]
			if strings.TrimSpace(n.Name) != "" {
				product.Name = strings.TrimSpace(n.Name)
			}
			product.Category = n.Category
			product.Nutrients = domain.Nutrients{
				Calories: n.Calories,
				Protein:  n.Protein,
				Fat:      n.Fat,
				Carbs:    n.Carbs,
				Fiber:    n.Fiber,
			}
		}
		products = append(products, product)
	}
	return products
}

func (uc *ReceiptIngestUseCase) normalize(ctx context.Context, extraction *receiptExtraction) *normalizedItems {
	names := make([]string, 0, len(extraction.Items))
	for _, item := range extraction.Items {
		names = append(names, item.Name)
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskClassifyText,
		Text:   strings.Join(names, "\n"),
		Prompt: receiptNormalizePrompt,
	})
	if err != nil {
		uc.logger.Warn("receipt_normalize_degraded", "items", len(names), "error", err)
		return nil
	}

	var normalized normalizedItems
	if err := json.Unmarshal([]byte(result.Raw), &normalized); err != nil {
		uc.logger.Warn("receipt_normalize_unparsable", "error", err)
		return nil
	}
	return &normalized
}
