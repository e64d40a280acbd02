package strategy

// Strategy turns per-date signal values into target portfolio weights.
// Implementations must be pure: the same signals and prices always produce
// the same weights.
type Strategy interface {
	// Name identifies the strategy in logs and results.
	Name() string
	// Universe lists the tradeable asset tickers.
	Universe() []string
	// CalculateWeights maps the current signal values to target weights.
	// Signals absent from the input are excluded, not treated as zero.
	// Prices are available for sanity checks; the baseline policy ignores
	// them.
	CalculateWeights(signals map[string]float64, prices map[string]float64) (Weights, error)
}
