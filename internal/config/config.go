// Package config loads and validates the YAML run configuration. Defaults
// come from struct tags; caller-supplied values win over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full run configuration.
type Config struct {
	Start     string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End       string `yaml:"end" validate:"required,datetime=2006-01-02"`
	Rebalance string `yaml:"rebalance" default:"monthly" validate:"required"`

	InitialCapital  float64 `yaml:"initial_capital" default:"1000000" validate:"gt=0"`
	TransactionCost float64 `yaml:"transaction_cost" default:"0.001" validate:"gte=0,lt=1"`

	Universe []string `yaml:"universe" validate:"min=1,dive,required"`

	Strategy StrategyConfig `yaml:"strategy"`
	Signals  SignalsConfig  `yaml:"signals"`
	Data     DataConfig     `yaml:"data"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
}

// StrategyConfig configures the threshold allocation policy.
type StrategyConfig struct {
	Name            string  `yaml:"name" default:"macro"`
	Threshold       float64 `yaml:"threshold" default:"0.5" validate:"gte=0"`
	MaxLeverage     float64 `yaml:"max_leverage" default:"1.0" validate:"gt=0"`
	MaxPositionSize float64 `yaml:"max_position_size" validate:"gte=0"`
	RiskOn          string  `yaml:"risk_on" default:"SPY"`
	RiskOff         string  `yaml:"risk_off" default:"TLT"`
}

// SignalsConfig enables and parameterizes the individual signals. A nil block
// disables its signal.
type SignalsConfig struct {
	YieldCurve  *YieldCurveConfig  `yaml:"yield_curve"`
	Inflation   *InflationConfig   `yaml:"inflation_surprise"`
	GDPMomentum *GDPMomentumConfig `yaml:"gdp_momentum"`
}

// NormalizationConfig is the shared normalization block.
type NormalizationConfig struct {
	Method          string  `yaml:"method" default:"zscore" validate:"oneof=zscore percentile"`
	Window          int     `yaml:"window" default:"252" validate:"gt=1"`
	SmoothingWindow int     `yaml:"smoothing_window" validate:"gte=0"`
	Cap             float64 `yaml:"cap" default:"2.0" validate:"gte=0"`
}

// YieldCurveConfig parameterizes the yield-curve signal.
type YieldCurveConfig struct {
	Weight        float64             `yaml:"weight" default:"1.0" validate:"gt=0"`
	LongYield     string              `yaml:"long_yield" default:"yield_10y"`
	ShortYield    string              `yaml:"short_yield" default:"yield_2y"`
	Invert        bool                `yaml:"invert"`
	Normalization NormalizationConfig `yaml:"normalization"`
}

// InflationConfig parameterizes the inflation-surprise signal.
type InflationConfig struct {
	Weight        float64             `yaml:"weight" default:"1.0" validate:"gt=0"`
	CPIColumn     string              `yaml:"cpi_column" default:"cpi"`
	Lookback      int                 `yaml:"lookback" default:"12" validate:"gt=0"`
	TrendWindow   int                 `yaml:"trend_window" default:"12" validate:"gt=0"`
	Normalization NormalizationConfig `yaml:"normalization"`
}

// GDPMomentumConfig parameterizes the GDP-momentum signal.
type GDPMomentumConfig struct {
	Weight         float64             `yaml:"weight" default:"1.0" validate:"gt=0"`
	GDPColumn      string              `yaml:"gdp_column" default:"gdp"`
	MomentumWindow int                 `yaml:"momentum_window" default:"4" validate:"gt=1"`
	Normalization  NormalizationConfig `yaml:"normalization"`
}

// The signal blocks are allocated by the YAML decoder, after the top-level
// defaults pass. Seeding each block's defaults before decoding its node keeps
// an explicit zero (for example a disabled cap) distinct from an omitted key.

func (c *YieldCurveConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain YieldCurveConfig
	if err := defaults.Set((*plain)(c)); err != nil {
		return err
	}
	return node.Decode((*plain)(c))
}

func (c *InflationConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain InflationConfig
	if err := defaults.Set((*plain)(c)); err != nil {
		return err
	}
	return node.Decode((*plain)(c))
}

func (c *GDPMomentumConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain GDPMomentumConfig
	if err := defaults.Set((*plain)(c)); err != nil {
		return err
	}
	return node.Decode((*plain)(c))
}

// DataConfig configures the data sources and cache.
type DataConfig struct {
	FREDAPIKeyEnv string `yaml:"fred_api_key_env" default:"FRED_API_KEY"`
	PriceDir      string `yaml:"price_dir" default:"./data/prices"`
	RedisAddr     string `yaml:"redis_addr"`
	CacheTTL      string `yaml:"cache_ttl" default:"24h"`
}

// CacheTTLDuration parses the cache TTL, falling back to 24h on a bad value.
func (d DataConfig) CacheTTLDuration() time.Duration {
	ttl, err := time.ParseDuration(d.CacheTTL)
	if err != nil || ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}

// OutputConfig configures report writing.
type OutputConfig struct {
	Dir     string   `yaml:"dir" default:"./out"`
	Formats []string `yaml:"formats" default:"[\"csv\",\"json\"]" validate:"dive,oneof=csv json xlsx"`
}

// DatabaseConfig configures the optional run store. An empty DSN disables
// persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads a YAML config file, fills defaults, and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML config bytes, fills defaults, and validates. Defaults
// are applied before decoding so an explicit zero in the file stays zero
// rather than being mistaken for an unset field.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.StartTime().After(cfg.EndTime()) || cfg.StartTime().Equal(cfg.EndTime()) {
		return nil, fmt.Errorf("invalid config: start %s must be before end %s", cfg.Start, cfg.End)
	}
	return cfg, nil
}

// StartTime returns the parsed start date. Validation guarantees the format.
func (c *Config) StartTime() time.Time {
	t, _ := time.Parse("2006-01-02", c.Start)
	return t
}

// EndTime returns the parsed end date.
func (c *Config) EndTime() time.Time {
	t, _ := time.Parse("2006-01-02", c.End)
	return t
}

// SignalWeights maps enabled signal names to their combination weights.
func (c *Config) SignalWeights() map[string]float64 {
	weights := make(map[string]float64)
	if c.Signals.YieldCurve != nil {
		weights["yield_curve"] = c.Signals.YieldCurve.Weight
	}
	if c.Signals.Inflation != nil {
		weights["inflation_surprise"] = c.Signals.Inflation.Weight
	}
	if c.Signals.GDPMomentum != nil {
		weights["gdp_momentum"] = c.Signals.GDPMomentum.Weight
	}
	return weights
}
