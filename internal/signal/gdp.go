package signal

import (
	"github.com/macroquant/macrorun/internal/timeseries"
)

// GDPMomentumConfig configures the GDP growth-momentum signal.
type GDPMomentumConfig struct {
	GDPColumn string
	// MomentumWindow is split in half: recent average growth minus the
	// prior half-window's average growth.
	MomentumWindow int
	Normalize      NormalizeConfig
}

// DefaultGDPMomentumConfig returns the standard 4-period setup.
func DefaultGDPMomentumConfig() *GDPMomentumConfig {
	return &GDPMomentumConfig{
		GDPColumn:      "gdp",
		MomentumWindow: 4,
		Normalize:      DefaultNormalizeConfig(),
	}
}

// GDPMomentumSignal trades the acceleration of GDP growth.
type GDPMomentumSignal struct {
	cfg *GDPMomentumConfig
}

// NewGDPMomentumSignal creates the signal. A nil config uses defaults; a
// partial config has its unset fields filled from the defaults.
func NewGDPMomentumSignal(cfg *GDPMomentumConfig) *GDPMomentumSignal {
	def := DefaultGDPMomentumConfig()
	if cfg == nil {
		return &GDPMomentumSignal{cfg: def}
	}
	merged := *cfg
	if merged.GDPColumn == "" {
		merged.GDPColumn = def.GDPColumn
	}
	if merged.MomentumWindow == 0 {
		merged.MomentumWindow = def.MomentumWindow
	}
	merged.Normalize = merged.Normalize.withDefaults()
	return &GDPMomentumSignal{cfg: &merged}
}

func (s *GDPMomentumSignal) Name() string { return "gdp_momentum" }

func (s *GDPMomentumSignal) Required() []string { return []string{s.cfg.GDPColumn} }

func (s *GDPMomentumSignal) Normalization() NormalizeConfig { return s.cfg.Normalize }

// Raw computes growth acceleration: average period-over-period growth across
// the recent half-window minus the same average over the half-window before
// it.
func (s *GDPMomentumSignal) Raw(data *timeseries.Frame) (*timeseries.Series, error) {
	gdp, err := column(data, s.Name(), s.cfg.GDPColumn)
	if err != nil {
		return nil, err
	}
	growth := gdp.PctChange(1)
	half := s.cfg.MomentumWindow / 2
	if half < 1 {
		half = 1
	}
	current := growth.RollingMean(half, half)
	previous := growth.Shift(half).RollingMean(half, half)
	return current.Sub(previous)
}
