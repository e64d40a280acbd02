package portfolio

import (
	"math"
)

// annualization assumes daily returns. The factor is applied regardless of
// the actual rebalance frequency; this is a documented approximation, not a
// frequency-aware calculation.
const annualizationPeriods = 252

// Metric keys returned by PerformanceMetrics.
const (
	MetricTotalReturn      = "total_return"
	MetricAnnualizedReturn = "annualized_return"
	MetricVolatility       = "volatility"
	MetricSharpeRatio      = "sharpe_ratio"
	MetricMaxDrawdown      = "max_drawdown"
	MetricWinRate          = "win_rate"
	MetricAvgWin           = "avg_win"
	MetricAvgLoss          = "avg_loss"
)

// PerformanceMetrics derives summary statistics from the returns and NAV
// series. Values other than the Sharpe ratio are expressed in percent. With
// fewer than two return observations every metric is zero.
func (p *Portfolio) PerformanceMetrics() map[string]float64 {
	metrics := map[string]float64{
		MetricTotalReturn:      0,
		MetricAnnualizedReturn: 0,
		MetricVolatility:       0,
		MetricSharpeRatio:      0,
		MetricMaxDrawdown:      0,
		MetricWinRate:          0,
		MetricAvgWin:           0,
		MetricAvgLoss:          0,
	}
	if p.returns == nil || p.returns.Len() < 2 {
		return metrics
	}

	returns := p.returns.ValidValues()
	mean := meanOf(returns)
	std := sampleStd(returns, mean)
	annFactor := math.Sqrt(annualizationPeriods)

	if p.nav != nil && p.nav.Len() > 0 && p.initialCapital != 0 {
		metrics[MetricTotalReturn] = (p.nav.At(p.nav.Len()-1)/p.initialCapital - 1) * 100
	}
	metrics[MetricAnnualizedReturn] = mean * annualizationPeriods * 100
	metrics[MetricVolatility] = std * annFactor * 100
	if std > 0 {
		metrics[MetricSharpeRatio] = mean / std * annFactor
	}
	metrics[MetricMaxDrawdown] = maxDrawdown(returns) * 100

	wins, losses := 0, 0
	var winSum, lossSum float64
	for _, r := range returns {
		if r > 0 {
			wins++
			winSum += r
		} else if r < 0 {
			losses++
			lossSum += r
		}
	}
	metrics[MetricWinRate] = float64(wins) / float64(len(returns)) * 100
	if wins > 0 {
		metrics[MetricAvgWin] = winSum / float64(wins) * 100
	}
	if losses > 0 {
		metrics[MetricAvgLoss] = lossSum / float64(losses) * 100
	}
	return metrics
}

// maxDrawdown tracks the running maximum of the cumulative growth factor and
// reports the most negative peak-to-trough decline as a fraction (≤ 0).
func maxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	runningMax := 1.0
	minDD := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > runningMax {
			runningMax = cumulative
		}
		if dd := (cumulative - runningMax) / runningMax; dd < minDD {
			minDD = dd
		}
	}
	return minDD
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}
