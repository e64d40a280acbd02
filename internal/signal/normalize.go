package signal

import (
	"fmt"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Method selects the normalization scheme.
type Method string

const (
	// MethodZScore scales by a rolling mean and standard deviation.
	MethodZScore Method = "zscore"
	// MethodPercentile ranks within a rolling window, output in (0, 1].
	MethodPercentile Method = "percentile"
)

// epsilon stabilizes the z-score denominator against near-zero variance.
const epsilon = 1e-8

// NormalizeConfig controls the normalization pipeline. A zero SmoothingWindow
// disables smoothing; a zero Cap disables capping.
type NormalizeConfig struct {
	Method          Method
	Window          int
	SmoothingWindow int
	Cap             float64
}

// DefaultNormalizeConfig returns the standard rolling z-score setup: a
// 252-observation window with values capped to [-2, 2].
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{
		Method: MethodZScore,
		Window: 252,
		Cap:    2.0,
	}
}

// withDefaults fills unset method and window from the standard setup. A zero
// SmoothingWindow or Cap is a real setting (disabled) and stays zero.
func (c NormalizeConfig) withDefaults() NormalizeConfig {
	def := DefaultNormalizeConfig()
	if c.Method == "" {
		c.Method = def.Method
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	return c
}

// Normalize scales a raw signal to a comparable range.
//
// The z-score method requires window/2 observations before producing a value;
// earlier points fill to the neutral 0. The percentile method requires a full
// window and fills to the neutral rank 0.5.
func Normalize(raw *timeseries.Series, cfg NormalizeConfig) (*timeseries.Series, error) {
	switch cfg.Method {
	case MethodZScore, "":
		mean := raw.RollingMean(cfg.Window, cfg.Window/2)
		std := raw.RollingStd(cfg.Window, cfg.Window/2)
		values := make([]float64, raw.Len())
		for i := range values {
			values[i] = (raw.At(i) - mean.At(i)) / (std.At(i) + epsilon)
		}
		normalized, err := timeseries.New(raw.Dates(), values)
		if err != nil {
			return nil, err
		}
		return normalized.FillNA(0), nil

	case MethodPercentile:
		return raw.RollingRankPct(cfg.Window).FillNA(0.5), nil

	default:
		return nil, fmt.Errorf("unknown normalization method: %s", cfg.Method)
	}
}

// applyTransforms applies post-normalization smoothing then capping, in that
// order.
func applyTransforms(s *timeseries.Series, cfg NormalizeConfig) *timeseries.Series {
	if cfg.SmoothingWindow > 0 {
		s = s.RollingMean(cfg.SmoothingWindow, 1)
	}
	if cfg.Cap > 0 {
		s = s.Clip(-cfg.Cap, cfg.Cap)
	}
	return s
}
