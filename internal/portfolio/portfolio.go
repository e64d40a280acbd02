// Package portfolio implements the portfolio state machine: it replays
// target-weight decisions into holdings, trades, cash, NAV, and returns.
// Histories are append-only and keyed by strictly increasing rebalance dates.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Portfolio owns the five aligned histories: holdings, weights, trades, cash
// (per rebalance date) and the derived NAV and returns series. Nothing else
// writes to this state.
type Portfolio struct {
	initialCapital float64
	costRate       float64

	dates    []time.Time
	holdings []map[string]float64
	weights  []map[string]float64
	trades   []map[string]float64
	cash     []float64

	nav     *timeseries.Series
	returns *timeseries.Series
}

// New creates an empty portfolio with the given starting capital and flat
// proportional transaction cost rate.
func New(initialCapital, transactionCost float64) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		costRate:       transactionCost,
	}
}

// InitialCapital returns the starting cash amount.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// Rebalances returns the number of recorded rebalance rows.
func (p *Portfolio) Rebalances() int { return len(p.dates) }

// Dates returns a copy of the rebalance date index.
func (p *Portfolio) Dates() []time.Time {
	return append([]time.Time(nil), p.dates...)
}

// HoldingsAt returns a copy of the holdings row at index i.
func (p *Portfolio) HoldingsAt(i int) map[string]float64 { return copyRow(p.holdings[i]) }

// WeightsAt returns a copy of the weights row at index i.
func (p *Portfolio) WeightsAt(i int) map[string]float64 { return copyRow(p.weights[i]) }

// TradesAt returns a copy of the trade-delta row at index i.
func (p *Portfolio) TradesAt(i int) map[string]float64 { return copyRow(p.trades[i]) }

// CashAt returns the cash balance at index i.
func (p *Portfolio) CashAt(i int) float64 { return p.cash[i] }

// NAV returns the NAV series computed by CalculateNav, or an empty series.
func (p *Portfolio) NAV() *timeseries.Series {
	if p.nav == nil {
		return timeseries.Empty()
	}
	return p.nav
}

// Returns returns the returns series computed by CalculateReturns, or an
// empty series.
func (p *Portfolio) Returns() *timeseries.Series {
	if p.returns == nil {
		return timeseries.Empty()
	}
	return p.returns
}

// latestNav is the last computed NAV, or the initial capital before any NAV
// exists.
func (p *Portfolio) latestNav() float64 {
	if p.nav != nil && p.nav.Len() > 0 {
		return p.nav.At(p.nav.Len() - 1)
	}
	return p.initialCapital
}

// UpdateHoldings converts target weights into share counts at current prices,
// records the trade deltas against the previous snapshot, charges the
// proportional transaction cost, and appends one row to each history.
//
// Dates must arrive in strictly increasing order; a recorded row is never
// revised. A zero, negative, or NaN price for an asset with nonzero target
// weight is rejected; sizing against such a price is undefined.
func (p *Portfolio) UpdateHoldings(targetWeights map[string]float64, prices map[string]float64, date time.Time) error {
	if n := len(p.dates); n > 0 && !date.After(p.dates[n-1]) {
		return fmt.Errorf("rebalance date %s not after last recorded date %s",
			date.Format("2006-01-02"), p.dates[n-1].Format("2006-01-02"))
	}

	nav := p.latestNav()

	targetShares := make(map[string]float64, len(targetWeights))
	for ticker, weight := range targetWeights {
		if weight == 0 {
			targetShares[ticker] = 0
			continue
		}
		price, ok := prices[ticker]
		if !ok || price <= 0 || math.IsNaN(price) {
			return fmt.Errorf("unusable price %v for %s on %s with target weight %.4f",
				price, ticker, date.Format("2006-01-02"), weight)
		}
		targetShares[ticker] = weight * nav / price
	}

	var previous map[string]float64
	if len(p.holdings) > 0 {
		previous = p.holdings[len(p.holdings)-1]
	}

	trades := make(map[string]float64, len(targetShares))
	var grossTradeValue, netCashFlow float64
	for ticker, shares := range targetShares {
		delta := shares - previous[ticker]
		trades[ticker] = delta
		price := prices[ticker]
		grossTradeValue += math.Abs(delta) * price
		netCashFlow += delta * price
	}

	cost := grossTradeValue * p.costRate
	prevCash := p.initialCapital
	if len(p.cash) > 0 {
		prevCash = p.cash[len(p.cash)-1]
	}

	p.dates = append(p.dates, date)
	p.holdings = append(p.holdings, targetShares)
	p.weights = append(p.weights, copyRow(targetWeights))
	p.trades = append(p.trades, trades)
	p.cash = append(p.cash, prevCash-netCashFlow-cost)
	return nil
}

// CalculateNav values every recorded holdings row at that date's prices,
// falling back to the most recent price at or before the date, never a
// future one, and adds the cash balance under the same fallback rule. Dates
// with no asset/price intersection are skipped, which can leave the NAV
// series shorter than the holdings history. The series is rebuilt from
// scratch on every call, so repeated calls with the same price history are
// idempotent.
func (p *Portfolio) CalculateNav(prices *timeseries.Frame) (*timeseries.Series, error) {
	navDates := make([]time.Time, 0, len(p.dates))
	navValues := make([]float64, 0, len(p.dates))

	for i, date := range p.dates {
		row, ok := prices.RowAsOf(date)
		if !ok {
			continue
		}
		value := 0.0
		matched := false
		for ticker, shares := range p.holdings[i] {
			price, present := row[ticker]
			if !present || math.IsNaN(price) {
				continue
			}
			value += shares * price
			matched = true
		}
		if !matched {
			continue
		}
		navDates = append(navDates, date)
		navValues = append(navValues, value+p.cashAsOf(date))
	}

	nav, err := timeseries.New(navDates, navValues)
	if err != nil {
		return nil, err
	}
	p.nav = nav
	return nav, nil
}

// cashAsOf returns the cash balance at or before the given date, or the
// initial capital when no row precedes it.
func (p *Portfolio) cashAsOf(date time.Time) float64 {
	for i := len(p.dates) - 1; i >= 0; i-- {
		if !p.dates[i].After(date) {
			return p.cash[i]
		}
	}
	return p.initialCapital
}

// CalculateReturns computes the simple percent change of the NAV series. With
// fewer than two NAV points it yields an empty series, not an error.
func (p *Portfolio) CalculateReturns() *timeseries.Series {
	if p.nav == nil || p.nav.Len() < 2 {
		p.returns = timeseries.Empty()
		return p.returns
	}
	p.returns = p.nav.PctChange(1).DropNA()
	return p.returns
}

func copyRow(row map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
