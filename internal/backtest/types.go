// Package backtest orchestrates a full simulation: data loading, signal
// generation, date alignment, the rebalance replay, and result evaluation.
package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/macroquant/macrorun/internal/portfolio"
	"github.com/macroquant/macrorun/internal/timeseries"
)

// Config holds the engine parameters. Data sources, signals, and strategy
// arrive as collaborators, not config.
type Config struct {
	InitialCapital  float64
	TransactionCost float64
	Rebalance       Frequency
}

// DefaultConfig returns the standard monthly million-dollar setup with 10bp
// transaction costs.
func DefaultConfig() *Config {
	return &Config{
		InitialCapital:  1_000_000,
		TransactionCost: 0.001,
		Rebalance:       Monthly,
	}
}

// Warning is a recovered per-rebalance issue, collected on the result instead
// of aborting the run.
type Warning struct {
	Date    time.Time `json:"date"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Warning codes.
const (
	WarnSignalFailed = "signal_failed"
	WarnNaNSignal    = "nan_signal"
	WarnNaNPrice     = "nan_price"
	WarnSkippedDate  = "skipped_date"
)

// Result is the outcome of one backtest run.
type Result struct {
	ID             uuid.UUID
	Start          time.Time
	End            time.Time
	RebalanceDates []time.Time
	Portfolio      *portfolio.Portfolio
	Warnings       []Warning
	Duration       time.Duration
}

// AlignmentError reports signal and price series with no overlapping dates:
// no meaningful backtest is possible, so the run aborts.
type AlignmentError struct {
	SignalDates int
	PriceDates  int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("no overlapping dates between signals (%d dates) and prices (%d dates)",
		e.SignalDates, e.PriceDates)
}

// zeroSeries builds an all-zero neutral signal over the given index, the
// substitute for a signal that failed to generate.
func zeroSeries(dates []time.Time) *timeseries.Series {
	return timeseries.Constant(dates, 0)
}
