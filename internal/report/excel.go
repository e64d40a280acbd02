package report

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// WriteWorkbook writes results.xlsx with a Results sheet (the per-date table)
// and a Metrics sheet (name/value pairs, sorted).
func (w *Writer) WriteWorkbook(frame *timeseries.Frame, metrics map[string]float64) (string, error) {
	book := excelize.NewFile()
	defer book.Close()

	const resultsSheet = "Results"
	if err := book.SetSheetName(book.GetSheetName(0), resultsSheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	header := append([]string{"Date"}, frame.Columns()...)
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := book.SetCellValue(resultsSheet, cell, name); err != nil {
			return "", err
		}
	}

	columns := frame.Columns()
	for i, date := range frame.Dates() {
		row, _ := frame.Row(date)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := book.SetCellValue(resultsSheet, cell, date.Format("2006-01-02")); err != nil {
			return "", err
		}
		for j, name := range columns {
			v := row[name]
			if math.IsNaN(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, i+2)
			if err != nil {
				return "", err
			}
			if err := book.SetCellValue(resultsSheet, cell, v); err != nil {
				return "", err
			}
		}
	}

	const metricsSheet = "Metrics"
	if _, err := book.NewSheet(metricsSheet); err != nil {
		return "", fmt.Errorf("create metrics sheet: %w", err)
	}
	if err := book.SetCellValue(metricsSheet, "A1", "Metric"); err != nil {
		return "", err
	}
	if err := book.SetCellValue(metricsSheet, "B1", "Value"); err != nil {
		return "", err
	}
	for i, key := range sortedKeys(metrics) {
		if math.IsNaN(metrics[key]) {
			continue
		}
		rowIdx := i + 2
		if err := book.SetCellValue(metricsSheet, fmt.Sprintf("A%d", rowIdx), key); err != nil {
			return "", err
		}
		if err := book.SetCellValue(metricsSheet, fmt.Sprintf("B%d", rowIdx), metrics[key]); err != nil {
			return "", err
		}
	}

	path := filepath.Join(w.dir, "results.xlsx")
	if err := book.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	log.Info().Str("path", path).Msg("Wrote results workbook")
	return path, nil
}
