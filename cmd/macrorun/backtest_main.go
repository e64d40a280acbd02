package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/macroquant/macrorun/internal/backtest"
	"github.com/macroquant/macrorun/internal/config"
	"github.com/macroquant/macrorun/internal/data"
	"github.com/macroquant/macrorun/internal/persistence"
	"github.com/macroquant/macrorun/internal/report"
	"github.com/macroquant/macrorun/internal/signal"
	"github.com/macroquant/macrorun/internal/strategy"
	"github.com/macroquant/macrorun/internal/timeseries"
)

func runBacktest(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outputOverride, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if outputOverride != "" {
		cfg.Output.Dir = outputOverride
	}

	freq, err := backtest.ParseFrequency(cfg.Rebalance)
	if err != nil {
		return err
	}

	signals := buildSignals(cfg)
	if len(signals) == 0 {
		return fmt.Errorf("no signals enabled in %s", configPath)
	}

	strat, err := strategy.NewMacroStrategy(cfg.Strategy.Name, cfg.Universe, cfg.SignalWeights(), &strategy.MacroConfig{
		Threshold:       cfg.Strategy.Threshold,
		MaxLeverage:     cfg.Strategy.MaxLeverage,
		MaxPositionSize: cfg.Strategy.MaxPositionSize,
		RiskOn:          cfg.Strategy.RiskOn,
		RiskOff:         cfg.Strategy.RiskOff,
	})
	if err != nil {
		return err
	}

	cache := data.NewAutoCache(cfg.Data.RedisAddr)

	fredCfg := data.DefaultFREDConfig()
	fredCfg.CacheTTL = cfg.Data.CacheTTLDuration()
	macro := data.NewFREDClient(os.Getenv(cfg.Data.FREDAPIKeyEnv), fredCfg, cache)
	prices := data.NewCSVLoader(cfg.Data.PriceDir, cache)

	engine := backtest.NewEngine(macro, prices, signals, strat, &backtest.Config{
		InitialCapital:  cfg.InitialCapital,
		TransactionCost: cfg.TransactionCost,
		Rebalance:       freq,
	})

	ctx := cmd.Context()
	result, err := engine.Run(ctx, cfg.StartTime(), cfg.EndTime())
	if err != nil {
		return err
	}

	metrics, err := engine.Evaluate()
	if err != nil {
		return err
	}
	summary, err := engine.ResultsSummary()
	if err != nil {
		return err
	}

	if err := writeReports(cfg, summary, metrics); err != nil {
		return err
	}
	if save {
		persistRun(ctx, cfg, result, metrics)
	}

	log.Info().
		Float64("total_return_pct", metrics["total_return"]).
		Float64("sharpe", metrics["sharpe_ratio"]).
		Float64("max_drawdown_pct", metrics["max_drawdown"]).
		Str("output", cfg.Output.Dir).
		Msg("Backtest done")
	return nil
}

// buildSignals turns the enabled config blocks into signal instances.
func buildSignals(cfg *config.Config) []signal.Signal {
	var signals []signal.Signal
	if yc := cfg.Signals.YieldCurve; yc != nil {
		signals = append(signals, signal.NewYieldCurveSignal(&signal.YieldCurveConfig{
			LongYield:  yc.LongYield,
			ShortYield: yc.ShortYield,
			Invert:     yc.Invert,
			Normalize:  toNormalize(yc.Normalization),
		}))
	}
	if inf := cfg.Signals.Inflation; inf != nil {
		signals = append(signals, signal.NewInflationSignal(&signal.InflationConfig{
			CPIColumn:   inf.CPIColumn,
			Lookback:    inf.Lookback,
			TrendWindow: inf.TrendWindow,
			Normalize:   toNormalize(inf.Normalization),
		}))
	}
	if gdp := cfg.Signals.GDPMomentum; gdp != nil {
		signals = append(signals, signal.NewGDPMomentumSignal(&signal.GDPMomentumConfig{
			GDPColumn:      gdp.GDPColumn,
			MomentumWindow: gdp.MomentumWindow,
			Normalize:      toNormalize(gdp.Normalization),
		}))
	}
	return signals
}

func toNormalize(n config.NormalizationConfig) signal.NormalizeConfig {
	return signal.NormalizeConfig{
		Method:          signal.Method(n.Method),
		Window:          n.Window,
		SmoothingWindow: n.SmoothingWindow,
		Cap:             n.Cap,
	}
}

func writeReports(cfg *config.Config, summary *timeseries.Frame, metrics map[string]float64) error {
	writer, err := report.NewWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}
	for _, format := range cfg.Output.Formats {
		var path string
		var err error
		switch format {
		case "csv":
			path, err = writer.WriteResultsCSV(summary)
		case "json":
			path, err = writer.WriteMetricsJSON(metrics)
		case "xlsx":
			path, err = writer.WriteWorkbook(summary, metrics)
		}
		if err != nil {
			return fmt.Errorf("write %s report: %w", format, err)
		}
		log.Info().Str("format", format).Str("path", path).Msg("Report written")
	}
	return nil
}

// persistRun saves the run to the configured database. Persistence failures
// are logged, never fatal: the artifacts on disk are the primary output.
func persistRun(ctx context.Context, cfg *config.Config, result *backtest.Result, metrics map[string]float64) {
	if cfg.Database.DSN == "" {
		log.Warn().Msg("--save requested but no database DSN configured")
		return
	}
	store, err := persistence.Open(cfg.Database.DSN, 10*time.Second)
	if err != nil {
		log.Error().Err(err).Msg("Database connection failed, run not persisted")
		return
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("Schema init failed, run not persisted")
		return
	}

	configJSON, _ := json.Marshal(cfg)
	metricsJSON, _ := json.Marshal(metrics)
	run := persistence.Run{
		ID:        result.ID,
		CreatedAt: time.Now().UTC(),
		Start:     result.Start,
		End:       result.End,
		Strategy:  cfg.Strategy.Name,
		Config:    configJSON,
		Metrics:   metricsJSON,
	}

	nav := result.Portfolio.NAV()
	returns := result.Portfolio.Returns()
	rebalances := result.Portfolio.Dates()
	points := make([]persistence.NavPoint, 0, nav.Len())
	reb := -1
	for i := 0; i < nav.Len(); i++ {
		date := nav.Date(i)
		ret := 0.0
		if v, ok := returns.Value(date); ok {
			ret = v
		}
		for reb+1 < len(rebalances) && !rebalances[reb+1].After(date) {
			reb++
		}
		cash := result.Portfolio.InitialCapital()
		if reb >= 0 {
			cash = result.Portfolio.CashAt(reb)
		}
		points = append(points, persistence.NavPoint{
			RunID:  result.ID,
			Date:   date,
			NAV:    nav.At(i),
			Return: ret,
			Cash:   cash,
		})
	}

	if err := store.SaveRun(ctx, run, points); err != nil {
		log.Error().Err(err).Msg("Run save failed")
		return
	}
	log.Info().Str("run_id", run.ID.String()).Int("nav_points", len(points)).Msg("Run persisted")
}
