package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

const priceSearchPrompt = `Find the current retail price for the
product. Answer with JSON only: {"store": string, "price": number,
"currency": string}`

const priceTagOCRPrompt = `Read the price tag in the photo. Return
JSON: {"name": string, "price": number}`

// PriceLookupUseCase resolves a product name to a price quote through
// the web-augmented provider chain. Same retry/fallback skeleton as
// the vision tasks, longer timeout.
type PriceLookupUseCase struct {
	orchestrator *InferenceOrchestrator
}

func NewPriceLookupUseCase(orchestrator *InferenceOrchestrator) *PriceLookupUseCase {
	return &PriceLookupUseCase{orchestrator: orchestrator}
}

// LookupFromPhoto reads the product name off a price tag photo through
// the vision chain, then resolves that name to a quote.
func (uc *PriceLookupUseCase) LookupFromPhoto(ctx context.Context, photo []byte) (*domain.PriceQuote, error) {
	if len(photo) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup price from photo", fmt.Errorf("empty photo"))
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskPriceTagOCR,
		Image:  photo,
		Prompt: priceTagOCRPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("price tag extraction: %w", err)
	}

	var extraction struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(result.Raw), &extraction); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode price tag", err)
	}
	name := strings.TrimSpace(extraction.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup price from photo", fmt.Errorf("price tag has no product name"))
	}

	return uc.LookupPrice(ctx, name)
}

func (uc *PriceLookupUseCase) LookupPrice(ctx context.Context, productName string) (*domain.PriceQuote, error) {
	if productName == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup price", fmt.Errorf("empty product name"))
	}

	result, err := uc.orchestrator.Run(ctx, domain.InferenceTask{
		Kind:   domain.TaskPriceSearch,
		Text:   productName,
		Prompt: priceSearchPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("price search: %w", err)
	}

	var quote domain.PriceQuote
	if err := json.Unmarshal([]byte(result.Raw), &quote); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode price quote", err)
	}
	return &quote, nil
}
