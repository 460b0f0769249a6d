package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

// ExcelReporter renders a closed session's match result into an xlsx
// workbook: one sheet for matched pairs, one for leftovers with their
// ranked suggestions.
type ExcelReporter struct{}

func New() *ExcelReporter {
	return &ExcelReporter{}
}

func (r *ExcelReporter) Render(session *domain.Session, result *domain.MatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const matchedSheet = "Matched"
	const unmatchedSheet = "Unmatched"

	f.SetSheetName(f.GetSheetName(0), matchedSheet)
	if _, err := f.NewSheet(unmatchedSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	header := []any{"Product ID", "Label ID", "Score"}
	if err := f.SetSheetRow(matchedSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, pair := range result.Pairs {
		row := []any{pair.ProductID, pair.LabelID, fmt.Sprintf("%.1f", pair.Score)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(matchedSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write matched row: %w", err)
		}
	}

	unmatchedHeader := []any{"Side", "Name", "Suggestions"}
	if err := f.SetSheetRow(unmatchedSheet, "A1", &unmatchedHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	rowIdx := 2
	for _, product := range result.UnmatchedProducts {
		suggestions := ""
		for i, s := range result.Suggestions[product.ID] {
			if i > 0 {
				suggestions += "; "
			}
			suggestions += fmt.Sprintf("%s (%.0f)", s.Label.Name, s.Score)
		}
		row := []any{"product", product.Name, suggestions}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetSheetRow(unmatchedSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write unmatched row: %w", err)
		}
		rowIdx++
	}
	for _, label := range result.UnmatchedLabels {
		row := []any{"label", label.Name, ""}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetSheetRow(unmatchedSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write unmatched row: %w", err)
		}
		rowIdx++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
