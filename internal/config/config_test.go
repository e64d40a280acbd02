package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
start: 2020-01-01
end: 2023-12-31
universe: [SPY, TLT]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "monthly", cfg.Rebalance)
	assert.Equal(t, 1_000_000.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.TransactionCost)
	assert.Equal(t, 0.5, cfg.Strategy.Threshold)
	assert.Equal(t, 1.0, cfg.Strategy.MaxLeverage)
	assert.Equal(t, 0.0, cfg.Strategy.MaxPositionSize)
	assert.Equal(t, "SPY", cfg.Strategy.RiskOn)
	assert.Equal(t, "TLT", cfg.Strategy.RiskOff)
	assert.Equal(t, "./out", cfg.Output.Dir)
	assert.Equal(t, []string{"csv", "json"}, cfg.Output.Formats)
	assert.Equal(t, 24*time.Hour, cfg.Data.CacheTTLDuration())
}

func TestParseOverridesWinOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
start: 2020-01-01
end: 2023-12-31
universe: [QQQ, IEF]
rebalance: weekly
initial_capital: 250000
strategy:
  threshold: 0.25
  risk_on: QQQ
  risk_off: IEF
data:
  cache_ttl: 1h
`))
	require.NoError(t, err)

	assert.Equal(t, "weekly", cfg.Rebalance)
	assert.Equal(t, 250_000.0, cfg.InitialCapital)
	assert.Equal(t, 0.25, cfg.Strategy.Threshold)
	assert.Equal(t, "QQQ", cfg.Strategy.RiskOn)
	assert.Equal(t, time.Hour, cfg.Data.CacheTTLDuration())
}

func TestParseRejectsBadConfigs(t *testing.T) {
	cases := map[string]string{
		"missing universe": `
start: 2020-01-01
end: 2023-12-31
`,
		"bad date format": `
start: 01/01/2020
end: 2023-12-31
universe: [SPY]
`,
		"start after end": `
start: 2024-01-01
end: 2020-01-01
universe: [SPY]
`,
		"negative capital": `
start: 2020-01-01
end: 2023-12-31
universe: [SPY]
initial_capital: -5
`,
		"unknown output format": `
start: 2020-01-01
end: 2023-12-31
universe: [SPY]
output:
  formats: [pdf]
`,
		"not yaml": `{{{`,
	}

	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestParseKeepsExplicitZeros(t *testing.T) {
	cfg, err := Parse([]byte(`
start: 2020-01-01
end: 2023-12-31
universe: [SPY, TLT]
transaction_cost: 0
strategy:
  threshold: 0
signals:
  yield_curve:
    normalization:
      cap: 0
`))
	require.NoError(t, err)

	// An explicit zero is a setting, not an invitation to fill defaults:
	// zero cost, a degenerate always-decisive threshold, capping disabled.
	assert.Equal(t, 0.0, cfg.TransactionCost)
	assert.Equal(t, 0.0, cfg.Strategy.Threshold)

	yc := cfg.Signals.YieldCurve
	require.NotNil(t, yc)
	assert.Equal(t, 0.0, yc.Normalization.Cap)
	// Omitted siblings in the same block still default.
	assert.Equal(t, 252, yc.Normalization.Window)
	assert.Equal(t, "zscore", yc.Normalization.Method)
	assert.Equal(t, 1.0, yc.Weight)
}

func TestSignalWeights(t *testing.T) {
	cfg, err := Parse([]byte(`
start: 2020-01-01
end: 2023-12-31
universe: [SPY, TLT]
signals:
  yield_curve:
    weight: 2.0
  gdp_momentum: {}
`))
	require.NoError(t, err)

	weights := cfg.SignalWeights()
	assert.Equal(t, 2.0, weights["yield_curve"])
	assert.Equal(t, 1.0, weights["gdp_momentum"])
	_, present := weights["inflation_surprise"]
	assert.False(t, present)
}

func TestSignalBlockDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
start: 2020-01-01
end: 2023-12-31
universe: [SPY, TLT]
signals:
  inflation_surprise: {}
`))
	require.NoError(t, err)

	inf := cfg.Signals.Inflation
	require.NotNil(t, inf)
	assert.Equal(t, "cpi", inf.CPIColumn)
	assert.Equal(t, 12, inf.Lookback)
	assert.Equal(t, 12, inf.TrendWindow)
	assert.Equal(t, "zscore", inf.Normalization.Method)
	assert.Equal(t, 252, inf.Normalization.Window)
	assert.Equal(t, 2.0, inf.Normalization.Cap)
}

func TestStartEndTime(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime())
	assert.Equal(t, time.December, cfg.EndTime().Month())
}

func TestCacheTTLDurationFallback(t *testing.T) {
	d := DataConfig{CacheTTL: "garbage"}
	assert.Equal(t, 24*time.Hour, d.CacheTTLDuration())
}
