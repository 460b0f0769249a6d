package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

func TestRenderProducesReadableWorkbook(t *testing.T) {
	result := &domain.MatchResult{
		Pairs: []domain.MatchedPair{
			{ProductID: "p1", LabelID: "l1", Score: 81.4},
		},
		UnmatchedProducts: []domain.Product{{ID: "p2", Name: "Хлеб бородинский"}},
		UnmatchedLabels:   []domain.Label{{ID: "l2", Name: "Сыр"}},
		Suggestions: map[string][]domain.Suggestion{
			"p2": {
				{Label: domain.Label{ID: "l2", Name: "Сыр"}, Score: 44},
			},
		},
	}

	raw, err := New().Render(&domain.Session{ID: "s1"}, result)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("rendered bytes are not a valid workbook: %v", err)
	}
	defer f.Close()

	matched, err := f.GetRows("Matched")
	if err != nil {
		t.Fatalf("read Matched sheet: %v", err)
	}
	if len(matched) != 2 || matched[1][0] != "p1" || matched[1][2] != "81.4" {
		t.Fatalf("unexpected Matched rows: %v", matched)
	}

	unmatched, err := f.GetRows("Unmatched")
	if err != nil {
		t.Fatalf("read Unmatched sheet: %v", err)
	}
	if len(unmatched) != 3 {
		t.Fatalf("expected header plus one row per side, got %v", unmatched)
	}
	if unmatched[1][0] != "product" || unmatched[1][2] != "Сыр (44)" {
		t.Fatalf("unexpected product row: %v", unmatched[1])
	}
	if unmatched[2][0] != "label" || unmatched[2][1] != "Сыр" {
		t.Fatalf("unexpected label row: %v", unmatched[2])
	}
}

func TestRenderEmptyResult(t *testing.T) {
	raw, err := New().Render(&domain.Session{ID: "s1"}, &domain.MatchResult{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty result must still produce a workbook")
	}
}
