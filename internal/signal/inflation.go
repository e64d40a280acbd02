package signal

import (
	"github.com/macroquant/macrorun/internal/timeseries"
)

// InflationConfig configures the inflation-surprise signal.
type InflationConfig struct {
	CPIColumn string
	// Lookback is the number of periods for the year-over-year change.
	Lookback int
	// TrendWindow is the moving-average window defining the trend the
	// surprise is measured against.
	TrendWindow int
	Normalize   NormalizeConfig
}

// DefaultInflationConfig returns the standard 12-period YoY setup.
func DefaultInflationConfig() *InflationConfig {
	return &InflationConfig{
		CPIColumn:   "cpi",
		Lookback:    12,
		TrendWindow: 12,
		Normalize:   DefaultNormalizeConfig(),
	}
}

// InflationSignal trades inflation surprises: year-over-year CPI change
// relative to its own rolling trend.
type InflationSignal struct {
	cfg *InflationConfig
}

// NewInflationSignal creates the signal. A nil config uses defaults; a
// partial config has its unset fields filled from the defaults.
func NewInflationSignal(cfg *InflationConfig) *InflationSignal {
	def := DefaultInflationConfig()
	if cfg == nil {
		return &InflationSignal{cfg: def}
	}
	merged := *cfg
	if merged.CPIColumn == "" {
		merged.CPIColumn = def.CPIColumn
	}
	if merged.Lookback == 0 {
		merged.Lookback = def.Lookback
	}
	if merged.TrendWindow == 0 {
		merged.TrendWindow = def.TrendWindow
	}
	merged.Normalize = merged.Normalize.withDefaults()
	return &InflationSignal{cfg: &merged}
}

func (s *InflationSignal) Name() string { return "inflation_surprise" }

func (s *InflationSignal) Required() []string { return []string{s.cfg.CPIColumn} }

func (s *InflationSignal) Normalization() NormalizeConfig { return s.cfg.Normalize }

// Raw computes YoY CPI change in percent minus its rolling trend. The trend
// needs half its window of observations before it is defined.
func (s *InflationSignal) Raw(data *timeseries.Frame) (*timeseries.Series, error) {
	cpi, err := column(data, s.Name(), s.cfg.CPIColumn)
	if err != nil {
		return nil, err
	}
	yoy := cpi.PctChange(s.cfg.Lookback).MulScalar(100)
	trend := yoy.RollingMean(s.cfg.TrendWindow, s.cfg.TrendWindow/2)
	return yoy.Sub(trend)
}
