package backtest

import (
	"fmt"
	"math"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Evaluate derives the full metrics dictionary for the completed run:
// portfolio performance metrics, per-signal distribution statistics
// (<signal>_mean, <signal>_std, <signal>_skew), and average turnover in
// shares per rebalance.
func (e *Engine) Evaluate() (map[string]float64, error) {
	if e.result == nil {
		return nil, fmt.Errorf("must run backtest before evaluation")
	}

	metrics := e.portfolio.PerformanceMetrics()

	for _, name := range e.signalFrame.Columns() {
		series, _ := e.signalFrame.Column(name)
		if series.CountValid() == 0 {
			continue
		}
		metrics[name+"_mean"] = series.Mean()
		metrics[name+"_std"] = series.Std()
		metrics[name+"_skew"] = series.Skew()
	}

	if n := e.portfolio.Rebalances(); n > 0 {
		total := 0.0
		for i := 0; i < n; i++ {
			for _, delta := range e.portfolio.TradesAt(i) {
				total += math.Abs(delta)
			}
		}
		metrics["avg_daily_turnover"] = total / float64(n)
	}
	return metrics, nil
}

// ResultsSummary assembles the per-date results table over the NAV index:
// NAV, Returns, Cash, one Weight_<ticker> column per universe asset, and one
// Signal_<name> column per signal. Weights and signals are forward-filled
// onto NAV dates.
func (e *Engine) ResultsSummary() (*timeseries.Frame, error) {
	if e.result == nil {
		return nil, fmt.Errorf("must run backtest before summarizing")
	}

	nav := e.portfolio.NAV()
	frame, err := timeseries.NewFrame(nav.Dates())
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return frame, nil
	}

	if err := frame.AddColumn("NAV", nav.Values()); err != nil {
		return nil, err
	}

	returns := e.portfolio.Returns()
	returnValues := make([]float64, nav.Len())
	for i, date := range nav.Dates() {
		if v, ok := returns.Value(date); ok {
			returnValues[i] = v
		} else {
			returnValues[i] = math.NaN()
		}
	}
	if err := frame.AddColumn("Returns", returnValues); err != nil {
		return nil, err
	}

	cashValues := make([]float64, nav.Len())
	weightRows := make([]map[string]float64, nav.Len())
	rebalanceDates := e.portfolio.Dates()
	for i, date := range nav.Dates() {
		// NAV dates are a subset of rebalance dates; take the row at or
		// before each NAV date.
		last := -1
		for j, d := range rebalanceDates {
			if d.After(date) {
				break
			}
			last = j
		}
		if last >= 0 {
			cashValues[i] = e.portfolio.CashAt(last)
			weightRows[i] = e.portfolio.WeightsAt(last)
		} else {
			cashValues[i] = e.portfolio.InitialCapital()
		}
	}
	if err := frame.AddColumn("Cash", cashValues); err != nil {
		return nil, err
	}

	for _, ticker := range e.strategy.Universe() {
		values := make([]float64, nav.Len())
		for i := range values {
			if weightRows[i] != nil {
				values[i] = weightRows[i][ticker]
			} else {
				values[i] = math.NaN()
			}
		}
		if err := frame.AddColumn("Weight_"+ticker, values); err != nil {
			return nil, err
		}
	}

	for _, name := range e.signalFrame.Columns() {
		series, _ := e.signalFrame.Column(name)
		values := make([]float64, nav.Len())
		for i, date := range nav.Dates() {
			if v, ok := series.AsOf(date); ok {
				values[i] = v
			} else {
				values[i] = math.NaN()
			}
		}
		if err := frame.AddColumn("Signal_"+name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}
