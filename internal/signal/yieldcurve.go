package signal

import (
	"github.com/macroquant/macrorun/internal/timeseries"
)

// YieldCurveConfig configures the yield-curve slope signal.
type YieldCurveConfig struct {
	LongYield  string
	ShortYield string
	// Invert flips the sign, for going long when the curve flattens.
	Invert    bool
	Normalize NormalizeConfig
}

// DefaultYieldCurveConfig returns the standard 10Y-2Y spread setup with a
// 21-observation smoothing pass.
func DefaultYieldCurveConfig() *YieldCurveConfig {
	return &YieldCurveConfig{
		LongYield:  "yield_10y",
		ShortYield: "yield_2y",
		Normalize: NormalizeConfig{
			Method:          MethodZScore,
			Window:          252,
			SmoothingWindow: 21,
			Cap:             2.0,
		},
	}
}

// YieldCurveSignal trades the slope of the yield curve: long yield minus
// short yield.
type YieldCurveSignal struct {
	cfg *YieldCurveConfig
}

// NewYieldCurveSignal creates the signal. A nil config uses defaults; a
// partial config has its unset fields filled from the defaults.
func NewYieldCurveSignal(cfg *YieldCurveConfig) *YieldCurveSignal {
	def := DefaultYieldCurveConfig()
	if cfg == nil {
		return &YieldCurveSignal{cfg: def}
	}
	merged := *cfg
	if merged.LongYield == "" {
		merged.LongYield = def.LongYield
	}
	if merged.ShortYield == "" {
		merged.ShortYield = def.ShortYield
	}
	merged.Normalize = merged.Normalize.withDefaults()
	return &YieldCurveSignal{cfg: &merged}
}

func (s *YieldCurveSignal) Name() string { return "yield_curve" }

func (s *YieldCurveSignal) Required() []string {
	return []string{s.cfg.LongYield, s.cfg.ShortYield}
}

func (s *YieldCurveSignal) Normalization() NormalizeConfig { return s.cfg.Normalize }

// Raw computes the spread between the long and short yields.
func (s *YieldCurveSignal) Raw(data *timeseries.Frame) (*timeseries.Series, error) {
	long, err := column(data, s.Name(), s.cfg.LongYield)
	if err != nil {
		return nil, err
	}
	short, err := column(data, s.Name(), s.cfg.ShortYield)
	if err != nil {
		return nil, err
	}
	spread, err := long.Sub(short)
	if err != nil {
		return nil, err
	}
	if s.cfg.Invert {
		spread = spread.MulScalar(-1)
	}
	return spread, nil
}
