package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "macrorun"
	version = "v0.3.0"
)

func main() {
	// Secrets (FRED_API_KEY, database DSN) come from the environment; a
	// local .env is a convenience, not a requirement.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Macro-signal strategy backtester",
		Version: version,
		Long: `macrorun backtests discretionary macro-signal trading strategies:
it turns macroeconomic series (yields, inflation, GDP) into normalized
signals, maps them to target weights on a rebalancing schedule, and replays
the portfolio's holdings, cash, NAV, and returns over history.`,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest from a config file",
		Long:  "Load the YAML run configuration, execute the backtest, and write result artifacts",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringP("config", "c", "config.yaml", "Path to run configuration")
	backtestCmd.Flags().String("output", "", "Override output directory")
	backtestCmd.Flags().Bool("save", false, "Persist the run to the configured database")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics, and latest results over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().String("host", "127.0.0.1", "Bind address")
	serveCmd.Flags().Int("port", 8080, "Bind port")
	serveCmd.Flags().String("results", "./out", "Results directory to serve")

	rootCmd.AddCommand(backtestCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
