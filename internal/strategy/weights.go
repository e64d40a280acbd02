// Package strategy maps combined signal values to target portfolio weights
// and enforces leverage and position-size constraints.
package strategy

import (
	"fmt"
	"math"
)

// Weights maps asset tickers to weight fractions. Negative weights are short
// exposure.
type Weights map[string]float64

// Gross returns the sum of absolute weights (gross leverage).
func (w Weights) Gross() float64 {
	total := 0.0
	for _, v := range w {
		total += math.Abs(v)
	}
	return total
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// leverageTolerance allows for floating-point slack when validating weights.
const leverageTolerance = 1e-6

// Validate rejects weight vectors that carry NaN entries or exceed the
// leverage bound beyond tolerance. This is the strict validation path, as
// opposed to ApplyConstraints which scales and clips as normal policy.
func (w Weights) Validate(maxLeverage float64) error {
	for ticker, v := range w {
		if math.IsNaN(v) {
			return fmt.Errorf("weight for %s is NaN", ticker)
		}
	}
	if gross := w.Gross(); gross > maxLeverage+leverageTolerance {
		return fmt.Errorf("total weight %.4f exceeds maximum leverage %.4f", gross, maxLeverage)
	}
	return nil
}

// ApplyConstraints scales the weight vector down (never up) so gross leverage
// stays within maxLeverage, then clips each weight to
// [-maxPositionSize, maxPositionSize]. Order matters: clipping after scaling
// can only reduce leverage further. A zero maxPositionSize disables clipping.
func ApplyConstraints(w Weights, maxLeverage, maxPositionSize float64) Weights {
	out := w.Clone()
	if gross := out.Gross(); maxLeverage > 0 && gross > maxLeverage {
		scale := maxLeverage / gross
		for k := range out {
			out[k] *= scale
		}
	}
	if maxPositionSize > 0 {
		for k, v := range out {
			if v > maxPositionSize {
				out[k] = maxPositionSize
			} else if v < -maxPositionSize {
				out[k] = -maxPositionSize
			}
		}
	}
	return out
}
