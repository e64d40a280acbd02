package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/macroquant/macrorun/internal/data"
	"github.com/macroquant/macrorun/internal/portfolio"
	"github.com/macroquant/macrorun/internal/signal"
	"github.com/macroquant/macrorun/internal/strategy"
	"github.com/macroquant/macrorun/internal/telemetry"
	"github.com/macroquant/macrorun/internal/timeseries"
)

// Engine sequences one backtest: fetch, signal generation, alignment,
// rebalance replay, and NAV/returns computation. One engine owns one
// portfolio; independent parameter sets get independent engines.
type Engine struct {
	macro    data.Loader
	prices   data.Loader
	signals  []signal.Signal
	strategy strategy.Strategy
	cfg      *Config

	portfolio   *portfolio.Portfolio
	signalFrame *timeseries.Frame
	priceFrame  *timeseries.Frame
	result      *Result
}

// NewEngine wires the engine's collaborators. A nil config uses defaults.
func NewEngine(macro, prices data.Loader, signals []signal.Signal, strat strategy.Strategy, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		macro:    macro,
		prices:   prices,
		signals:  signals,
		strategy: strat,
		cfg:      cfg,
	}
}

// Run executes the backtest over [start, end] and returns the run result.
// The replay is strictly chronological; each date's decision depends only on
// state committed by earlier dates.
func (e *Engine) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	began := time.Now()
	result := &Result{ID: uuid.New(), Start: start, End: end}

	log.Info().Str("run_id", result.ID.String()).
		Time("start", start).Time("end", end).
		Str("strategy", e.strategy.Name()).
		Msg("Starting backtest")

	macroFrame, err := e.macro.FetchMultiple(ctx, e.requiredSeries(), start, end)
	if err != nil {
		return nil, fmt.Errorf("load macro data: %w", err)
	}
	priceFrame, err := e.prices.FetchMultiple(ctx, e.strategy.Universe(), start, end)
	if err != nil {
		return nil, fmt.Errorf("load price data: %w", err)
	}

	signalFrame := e.generateSignals(macroFrame, result)

	common := signalFrame.Intersect(priceFrame)
	if len(common) == 0 {
		return nil, &AlignmentError{SignalDates: signalFrame.Len(), PriceDates: priceFrame.Len()}
	}
	if e.signalFrame, err = signalFrame.Select(common); err != nil {
		return nil, err
	}
	if e.priceFrame, err = priceFrame.Select(common); err != nil {
		return nil, err
	}

	targets := TargetDates(e.cfg.Rebalance, common[0], common[len(common)-1])
	rebalanceDates := SnapToCalendar(targets, common)
	result.RebalanceDates = rebalanceDates
	log.Info().Int("dates", len(rebalanceDates)).Str("frequency", string(e.cfg.Rebalance)).
		Msg("Rebalancing schedule ready")

	e.portfolio = portfolio.New(e.cfg.InitialCapital, e.cfg.TransactionCost)
	e.replay(rebalanceDates, result)

	if _, err := e.portfolio.CalculateNav(e.priceFrame); err != nil {
		return nil, fmt.Errorf("calculate NAV: %w", err)
	}
	e.portfolio.CalculateReturns()

	result.Portfolio = e.portfolio
	result.Duration = time.Since(began)
	telemetry.RunDuration.Observe(result.Duration.Seconds())
	e.result = result

	log.Info().Str("run_id", result.ID.String()).
		Dur("duration", result.Duration).
		Int("rebalances", e.portfolio.Rebalances()).
		Int("warnings", len(result.Warnings)).
		Msg("Backtest completed")
	return result, nil
}

// requiredSeries is the ordered union of the columns the signals read.
func (e *Engine) requiredSeries() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range e.signals {
		for _, col := range s.Required() {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				ids = append(ids, col)
			}
		}
	}
	return ids
}

// generateSignals builds the signal frame over the macro index. A signal that
// fails to generate is replaced by an all-zero neutral series with a warning
// rather than aborting the run.
func (e *Engine) generateSignals(macroFrame *timeseries.Frame, result *Result) *timeseries.Frame {
	frame, _ := timeseries.NewFrame(macroFrame.Dates())
	for _, s := range e.signals {
		series, err := signal.Generate(s, macroFrame)
		if err != nil {
			log.Warn().Err(err).Str("signal", s.Name()).
				Msg("Signal generation failed, substituting neutral zero signal")
			result.Warnings = append(result.Warnings, Warning{
				Code:    WarnSignalFailed,
				Message: fmt.Sprintf("signal %s: %v", s.Name(), err),
			})
			series = zeroSeries(macroFrame.Dates())
		}
		if err := frame.AddSeries(s.Name(), series); err != nil {
			log.Warn().Err(err).Str("signal", s.Name()).Msg("Dropping misaligned signal")
		}
	}
	return frame
}

// replay walks the rebalance dates in order, recovering locally from NaN
// signals (zero-filled) and NaN prices (date skipped, previous holdings carry
// forward untouched).
func (e *Engine) replay(dates []time.Time, result *Result) {
	for i, date := range dates {
		telemetry.Rebalances.Inc()

		signals, ok := e.signalRow(date, result)
		if !ok {
			continue
		}
		prices, ok := e.priceRow(date, result)
		if !ok {
			continue
		}

		weights, err := e.strategy.CalculateWeights(signals, prices)
		if err != nil {
			log.Warn().Err(err).Time("date", date).Msg("Weight calculation failed, skipping date")
			result.Warnings = append(result.Warnings, Warning{
				Date: date, Code: WarnSkippedDate, Message: err.Error(),
			})
			continue
		}

		if err := e.portfolio.UpdateHoldings(weights, prices, date); err != nil {
			log.Warn().Err(err).Time("date", date).Msg("Holdings update failed, skipping date")
			result.Warnings = append(result.Warnings, Warning{
				Date: date, Code: WarnSkippedDate, Message: err.Error(),
			})
			continue
		}

		if (i+1)%10 == 0 {
			log.Info().Int("processed", i+1).Int("total", len(dates)).Msg("Rebalance progress")
		}
	}
}

// signalRow reads the signal values for a date, zero-filling NaN values with
// a warning.
func (e *Engine) signalRow(date time.Time, result *Result) (map[string]float64, bool) {
	row, ok := e.signalFrame.Row(date)
	if !ok {
		return nil, false
	}
	for name, v := range row {
		if math.IsNaN(v) {
			log.Warn().Time("date", date).Str("signal", name).Msg("NaN signal, filling with 0")
			result.Warnings = append(result.Warnings, Warning{
				Date: date, Code: WarnNaNSignal,
				Message: fmt.Sprintf("signal %s is NaN, filled with 0", name),
			})
			row[name] = 0
		}
	}
	return row, true
}

// priceRow reads the price values for a date. Any NaN price skips the whole
// rebalance; the previous holdings carry forward by not being touched.
func (e *Engine) priceRow(date time.Time, result *Result) (map[string]float64, bool) {
	row, ok := e.priceFrame.Row(date)
	if !ok {
		return nil, false
	}
	for ticker, v := range row {
		if math.IsNaN(v) {
			log.Warn().Time("date", date).Str("ticker", ticker).Msg("NaN price, skipping rebalance")
			result.Warnings = append(result.Warnings, Warning{
				Date: date, Code: WarnNaNPrice,
				Message: fmt.Sprintf("price for %s is NaN, rebalance skipped", ticker),
			})
			return nil, false
		}
	}
	return row, true
}
