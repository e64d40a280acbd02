package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macroquant/macrorun/internal/telemetry"
	"github.com/macroquant/macrorun/internal/timeseries"
)

// CSVLoader reads asset price history from <dir>/<ticker>.csv files with
// date,close rows (header optional). Backtests replay local history; prices
// are expected to be downloaded once and kept alongside the config.
type CSVLoader struct {
	dir   string
	cache Cache
	ttl   time.Duration
}

// NewCSVLoader creates a loader rooted at dir. A nil cache gets a private
// in-memory one.
func NewCSVLoader(dir string, cache Cache) *CSVLoader {
	if cache == nil {
		cache = NewCache()
	}
	return &CSVLoader{dir: dir, cache: cache, ttl: 0}
}

// FetchSeries loads one ticker's close prices within [start, end], cleaned
// the same way as macro series.
func (l *CSVLoader) FetchSeries(ctx context.Context, id string, start, end time.Time) (*timeseries.Series, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey("csv", id, start, end)
	if raw, ok := l.cache.Get(key); ok {
		if series, err := decodeSeries(raw); err == nil {
			return series, nil
		}
		// Corrupt entry: treat as a miss and reread the file.
		log.Warn().Str("ticker", id).Msg("Ignoring undecodable cache entry")
	}

	series, err := l.readFile(id)
	if err != nil {
		return nil, err
	}
	series = clean(series).Slice(start, end)
	if series.Len() == 0 {
		return nil, fmt.Errorf("no price data for %s between %s and %s",
			id, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	if raw, err := encodeSeries(series); err == nil {
		l.cache.Set(key, raw, l.ttl)
	}
	telemetry.SeriesFetches.WithLabelValues("csv").Inc()
	log.Info().Str("ticker", id).Int("observations", series.Len()).Msg("Loaded price series")
	return series, nil
}

// FetchMultiple loads several tickers and outer-joins them into a frame.
func (l *CSVLoader) FetchMultiple(ctx context.Context, ids []string, start, end time.Time) (*timeseries.Frame, error) {
	return fetchFrame(ctx, ids, start, end, l.FetchSeries)
}

func (l *CSVLoader) readFile(ticker string) (*timeseries.Series, error) {
	path := filepath.Join(l.dir, ticker+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file for %s: %w", ticker, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read price file for %s: %w", ticker, err)
	}

	var dates []time.Time
	var values []float64
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("%s row %d: expected date,close columns", path, i+1)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("%s row %d: bad date %q", path, i+1, record[0])
		}
		value := math.NaN()
		if raw := strings.TrimSpace(record[1]); raw != "" {
			value, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad value %q", path, i+1, record[1])
			}
		}
		dates = append(dates, date)
		values = append(values, value)
	}
	return timeseries.New(dates, values)
}
