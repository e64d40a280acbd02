// Package report writes backtest artifacts to disk: the per-date results
// table as CSV or XLSX and the metrics dictionary as JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Writer writes run artifacts into one output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteResultsCSV writes the results frame as results.csv with a Date column
// followed by the frame columns. Missing values become empty cells.
func (w *Writer) WriteResultsCSV(frame *timeseries.Frame) (string, error) {
	path := filepath.Join(w.dir, "results.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := append([]string{"Date"}, frame.Columns()...)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	columns := frame.Columns()
	for _, date := range frame.Dates() {
		row, _ := frame.Row(date)
		record := make([]string, 0, len(columns)+1)
		record = append(record, date.Format("2006-01-02"))
		for _, name := range columns {
			record = append(record, formatCell(row[name]))
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush results file: %w", err)
	}
	log.Info().Str("path", path).Int("rows", frame.Len()).Msg("Wrote results CSV")
	return path, nil
}

// WriteMetricsJSON writes the metrics dictionary as metrics.json with sorted
// keys. NaN values are not representable in JSON and are dropped.
func (w *Writer) WriteMetricsJSON(metrics map[string]float64) (string, error) {
	clean := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean[k] = v
		}
	}
	raw, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	path := filepath.Join(w.dir, "metrics.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write metrics file: %w", err)
	}
	log.Info().Str("path", path).Int("metrics", len(clean)).Msg("Wrote metrics JSON")
	return path, nil
}

// sortedKeys returns the metric names in stable order.
func sortedKeys(metrics map[string]float64) []string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
