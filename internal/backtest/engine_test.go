package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroquant/macrorun/internal/signal"
	"github.com/macroquant/macrorun/internal/strategy"
	"github.com/macroquant/macrorun/internal/timeseries"
)

// fakeLoader serves canned series keyed by id.
type fakeLoader struct {
	series map[string]*timeseries.Series
}

func (l *fakeLoader) FetchSeries(_ context.Context, id string, _, _ time.Time) (*timeseries.Series, error) {
	s, ok := l.series[id]
	if !ok {
		return nil, fmt.Errorf("no series %s", id)
	}
	return s, nil
}

func (l *fakeLoader) FetchMultiple(_ context.Context, ids []string, start, end time.Time) (*timeseries.Frame, error) {
	series := make([]*timeseries.Series, len(ids))
	for i, id := range ids {
		s, err := l.FetchSeries(context.Background(), id, start, end)
		if err != nil {
			return nil, err
		}
		series[i] = s
	}
	return timeseries.Merge(ids, series)
}

// stubSignal emits a fixed raw series. The window-1 percentile rank maps any
// value to 1.0, which keeps the combined signal deterministic.
type stubSignal struct {
	name string
	raw  *timeseries.Series
	err  error
}

func (s *stubSignal) Name() string       { return s.name }
func (s *stubSignal) Required() []string { return []string{"macro_" + s.name} }
func (s *stubSignal) Raw(*timeseries.Frame) (*timeseries.Series, error) {
	return s.raw, s.err
}
func (s *stubSignal) Normalization() signal.NormalizeConfig {
	return signal.NormalizeConfig{Method: signal.MethodPercentile, Window: 1}
}

func calendarDays(n int, from time.Time) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = from.AddDate(0, 0, i)
	}
	return dates
}

func constant(t *testing.T, dates []time.Time, v float64) *timeseries.Series {
	t.Helper()
	return timeseries.Constant(dates, v)
}

func newTestEngine(t *testing.T, signals []signal.Signal, macro, prices *fakeLoader) *Engine {
	t.Helper()
	strat, err := strategy.NewMacroStrategy("macro", []string{"SPY", "TLT"},
		map[string]float64{"bull": 1.0}, nil)
	require.NoError(t, err)
	return NewEngine(macro, prices, signals, strat, &Config{
		InitialCapital:  100_000,
		TransactionCost: 0,
		Rebalance:       Daily,
	})
}

func TestEngineRunEndToEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := calendarDays(10, start)

	sig := &stubSignal{name: "bull", raw: constant(t, dates, 3.0)}
	macro := &fakeLoader{series: map[string]*timeseries.Series{
		"macro_bull": constant(t, dates, 3.0),
	}}
	prices := &fakeLoader{series: map[string]*timeseries.Series{
		"SPY": constant(t, dates, 100),
		"TLT": constant(t, dates, 50),
	}}

	engine := newTestEngine(t, []signal.Signal{sig}, macro, prices)
	result, err := engine.Run(context.Background(), start, dates[len(dates)-1])
	require.NoError(t, err)

	assert.Len(t, result.RebalanceDates, 10)
	assert.Empty(t, result.Warnings)
	require.Equal(t, 10, result.Portfolio.Rebalances())

	// Percentile rank 1.0 exceeds the threshold: fully risk-on.
	weights := result.Portfolio.WeightsAt(0)
	assert.Equal(t, 1.0, weights["SPY"])
	assert.Equal(t, 0.0, weights["TLT"])

	// Flat prices, zero costs: NAV pinned at the initial capital.
	nav := result.Portfolio.NAV()
	require.Equal(t, 10, nav.Len())
	for i := 0; i < nav.Len(); i++ {
		assert.InDelta(t, 100_000, nav.At(i), 1e-6)
	}
}

func TestEngineSignalFailureFallsBackToNeutral(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := calendarDays(5, start)

	sig := &stubSignal{name: "bull", err: errors.New("bad data")}
	macro := &fakeLoader{series: map[string]*timeseries.Series{
		"macro_bull": constant(t, dates, 1.0),
	}}
	prices := &fakeLoader{series: map[string]*timeseries.Series{
		"SPY": constant(t, dates, 100),
		"TLT": constant(t, dates, 50),
	}}

	engine := newTestEngine(t, []signal.Signal{sig}, macro, prices)
	result, err := engine.Run(context.Background(), start, dates[len(dates)-1])
	require.NoError(t, err)

	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, WarnSignalFailed, result.Warnings[0].Code)

	// Zero combined signal sits inside the threshold band: 50/50.
	weights := result.Portfolio.WeightsAt(0)
	assert.Equal(t, 0.5, weights["SPY"])
	assert.Equal(t, 0.5, weights["TLT"])
}

func TestEngineNoOverlapFails(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	macroDates := calendarDays(5, start)
	priceDates := calendarDays(5, start.AddDate(1, 0, 0))

	sig := &stubSignal{name: "bull", raw: constant(t, macroDates, 1.0)}
	macro := &fakeLoader{series: map[string]*timeseries.Series{
		"macro_bull": constant(t, macroDates, 1.0),
	}}
	prices := &fakeLoader{series: map[string]*timeseries.Series{
		"SPY": constant(t, priceDates, 100),
		"TLT": constant(t, priceDates, 50),
	}}

	engine := newTestEngine(t, []signal.Signal{sig}, macro, prices)
	_, err := engine.Run(context.Background(), start, priceDates[len(priceDates)-1])

	var alignErr *AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, 5, alignErr.SignalDates)
	assert.Equal(t, 5, alignErr.PriceDates)
}

func TestEvaluateRequiresRun(t *testing.T) {
	engine := newTestEngine(t, nil, &fakeLoader{}, &fakeLoader{})
	_, err := engine.Evaluate()
	assert.Error(t, err)
	_, err = engine.ResultsSummary()
	assert.Error(t, err)
}

func TestEvaluateAndSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := calendarDays(6, start)

	sig := &stubSignal{name: "bull", raw: constant(t, dates, 2.0)}
	macro := &fakeLoader{series: map[string]*timeseries.Series{
		"macro_bull": constant(t, dates, 2.0),
	}}
	prices := &fakeLoader{series: map[string]*timeseries.Series{
		"SPY": constant(t, dates, 100),
		"TLT": constant(t, dates, 50),
	}}

	engine := newTestEngine(t, []signal.Signal{sig}, macro, prices)
	_, err := engine.Run(context.Background(), start, dates[len(dates)-1])
	require.NoError(t, err)

	metrics, err := engine.Evaluate()
	require.NoError(t, err)
	assert.Contains(t, metrics, "total_return")
	assert.Contains(t, metrics, "sharpe_ratio")
	assert.Contains(t, metrics, "bull_mean")
	assert.Contains(t, metrics, "bull_std")
	assert.Contains(t, metrics, "bull_skew")
	assert.Contains(t, metrics, "avg_daily_turnover")

	summary, err := engine.ResultsSummary()
	require.NoError(t, err)
	for _, col := range []string{"NAV", "Returns", "Cash", "Weight_SPY", "Weight_TLT", "Signal_bull"} {
		assert.True(t, summary.HasColumn(col), col)
	}
	assert.Equal(t, 6, summary.Len())
}
