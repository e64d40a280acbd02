// Package data provides the series loaders the engine consumes: a FRED
// client for macro series and a CSV loader for asset prices, both sharing a
// byte cache keyed by series and date range.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Loader fetches cleaned time series for identifiers over a date range.
// Implementations must return series with ascending dates and gaps
// represented as missing, never as silent zeros.
type Loader interface {
	FetchSeries(ctx context.Context, id string, start, end time.Time) (*timeseries.Series, error)
	FetchMultiple(ctx context.Context, ids []string, start, end time.Time) (*timeseries.Frame, error)
}

// DateRangeError reports a start date that is not strictly before the end
// date. It fails fast at load time.
type DateRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("start date %s must be strictly before end date %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// validateRange rejects inverted or empty date ranges.
func validateRange(start, end time.Time) error {
	if !start.Before(end) {
		return &DateRangeError{Start: start, End: end}
	}
	return nil
}

// fetchFrame implements FetchMultiple on top of a FetchSeries function,
// outer-joining the individual series into one frame.
func fetchFrame(ctx context.Context, ids []string, start, end time.Time,
	fetch func(ctx context.Context, id string, start, end time.Time) (*timeseries.Series, error)) (*timeseries.Frame, error) {

	series := make([]*timeseries.Series, 0, len(ids))
	for _, id := range ids {
		s, err := fetch(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return timeseries.Merge(ids, series)
}

// clean forward-fills interior gaps and drops leading missing observations,
// the only mutation applied to fetched series before use.
func clean(s *timeseries.Series) *timeseries.Series {
	return s.ForwardFill().DropNA()
}

// seriesEnvelope is the cache wire format for a series. Missing values
// round-trip as nulls.
type seriesEnvelope struct {
	Dates  []time.Time `json:"dates"`
	Values []*float64  `json:"values"`
}

func encodeSeries(s *timeseries.Series) ([]byte, error) {
	env := seriesEnvelope{
		Dates:  s.Dates(),
		Values: make([]*float64, s.Len()),
	}
	for i := 0; i < s.Len(); i++ {
		v := s.At(i)
		if !math.IsNaN(v) {
			value := v
			env.Values[i] = &value
		}
	}
	return json.Marshal(env)
}

func decodeSeries(raw []byte) (*timeseries.Series, error) {
	var env seriesEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode cached series: %w", err)
	}
	values := make([]float64, len(env.Values))
	for i, v := range env.Values {
		if v == nil {
			values[i] = math.NaN()
		} else {
			values[i] = *v
		}
	}
	return timeseries.New(env.Dates, values)
}

// cacheKey identifies a fetched range. Backtests are read-only replays of
// history, so keys are never invalidated.
func cacheKey(variant, id string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", variant, id, start.Format("2006-01-02"), end.Format("2006-01-02"))
}
