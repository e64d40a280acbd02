package strategy

import (
	"fmt"
	"math"
)

// MacroConfig configures the threshold allocation policy.
type MacroConfig struct {
	// Threshold is the combined-signal level separating risk-on, neutral,
	// and risk-off allocations.
	Threshold float64
	// MaxLeverage bounds the sum of absolute weights.
	MaxLeverage float64
	// MaxPositionSize clips each weight independently; 0 disables.
	MaxPositionSize float64
	// RiskOn and RiskOff name the assets the threshold policy allocates
	// between.
	RiskOn  string
	RiskOff string
}

// DefaultMacroConfig returns the standard SPY/TLT threshold setup.
func DefaultMacroConfig() *MacroConfig {
	return &MacroConfig{
		Threshold:   0.5,
		MaxLeverage: 1.0,
		RiskOn:      "SPY",
		RiskOff:     "TLT",
	}
}

// MacroStrategy allocates between a risk-on and a risk-off asset on a
// three-way threshold split of the combined signal:
//
//	combined >  threshold → 100% risk-on asset
//	combined < -threshold → 100% risk-off asset
//	otherwise             → 50/50 between both
//
// An asset missing from the universe leaves its leg unallocated. Leverage and
// position constraints apply after allocation on every call.
type MacroStrategy struct {
	name          string
	universe      []string
	signalWeights map[string]float64
	cfg           *MacroConfig
}

// NewMacroStrategy creates the strategy. signalWeights maps signal names to
// their contribution in the combined weighted average. A nil config uses
// defaults.
func NewMacroStrategy(name string, universe []string, signalWeights map[string]float64, cfg *MacroConfig) (*MacroStrategy, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("strategy %s: empty asset universe", name)
	}
	if cfg == nil {
		cfg = DefaultMacroConfig()
	}
	return &MacroStrategy{
		name:          name,
		universe:      append([]string(nil), universe...),
		signalWeights: signalWeights,
		cfg:           cfg,
	}, nil
}

func (s *MacroStrategy) Name() string { return s.name }

func (s *MacroStrategy) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Combine collapses per-signal values into one number via the weighted
// average over the signals present in the input. Signals without a configured
// weight, or weights without a signal value, contribute nothing.
func (s *MacroStrategy) Combine(signals map[string]float64) float64 {
	var weighted, total float64
	for name, weight := range s.signalWeights {
		value, ok := signals[name]
		if !ok {
			continue
		}
		weighted += value * weight
		total += weight
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// CalculateWeights applies the threshold policy to the combined signal, then
// the leverage and position constraints.
func (s *MacroStrategy) CalculateWeights(signals map[string]float64, _ map[string]float64) (Weights, error) {
	combined := s.Combine(signals)
	if math.IsNaN(combined) {
		return nil, fmt.Errorf("strategy %s: combined signal is NaN", s.name)
	}

	weights := make(Weights, len(s.universe))
	for _, ticker := range s.universe {
		weights[ticker] = 0
	}

	hasOn := weights.has(s.cfg.RiskOn)
	hasOff := weights.has(s.cfg.RiskOff)

	switch {
	case combined > s.cfg.Threshold:
		if hasOn {
			weights[s.cfg.RiskOn] = 1.0
		}
	case combined < -s.cfg.Threshold:
		if hasOff {
			weights[s.cfg.RiskOff] = 1.0
		}
	default:
		if hasOn && hasOff {
			weights[s.cfg.RiskOn] = 0.5
			weights[s.cfg.RiskOff] = 0.5
		}
	}

	return ApplyConstraints(weights, s.cfg.MaxLeverage, s.cfg.MaxPositionSize), nil
}

func (w Weights) has(ticker string) bool {
	_, ok := w[ticker]
	return ok
}
