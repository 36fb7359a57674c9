package cmd

import (
	"io"
	"log/slog"

	"github.com/rustyeddy/btledger/config"
	"github.com/rustyeddy/btledger/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "btledger",
	Short: "Deterministic backtest ledger with an auditable trail",
	Long: `btledger replays a bar series through a long-only strategy and records
every fill in an exact-decimal ledger.

Each run produces:
  - a trade journal (JSON and CSV) with a SHA-256 checksum
  - an equity curve and summary metrics
  - a sealed manifest tying data, config, journal and metrics together

Given the same bars, config and seed, two runs produce byte-identical
artifacts. Use "btledger verify" to check a manifest's seal later.`,
	SilenceUsage: true,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
}

// loadConfig reads --config plus BTLEDGER_* overrides, then applies the
// global log flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return logging.New(cfg.LoggingConfig(), cmd.ErrOrStderr())
}
