package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rustyeddy/btledger/backtest"
	"github.com/rustyeddy/btledger/config"
	"github.com/rustyeddy/btledger/internal/obs"
	"github.com/rustyeddy/btledger/market"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over a bar file",
	Long: `Run replays the bars in a .json or .csv file through a strategy and writes
the journal and sealed manifest.

Supported strategies:
  - noop:          never trades (baseline)
  - buy-and-hold:  buys on the first tradable bar and holds
  - ema-cross:     long on fast EMA crossing above slow, flat on the reverse
  - ema-cross-adx: ema-cross, trading only when ADX shows a strong trend
  - scripted:      fixed signals by bar index (--script "1:buy,5:sell")
  - random:        seeded coin flip each bar

Flags override the config file, which overrides the defaults.

Example:
  btledger run --data bars.csv --strategy ema-cross --fast 5 --slow 20 --seed 42`,
	RunE: runBacktest,
}

var (
	runDataPath  string
	runStrategy  string
	runFast      int
	runSlow      int
	runScript    string
	runADXPeriod int
	runADXThresh float64
	runSeed      int64
	runID        string
	runFillAt    string
	runStrict    bool
	runOutDir    string
	runOrg       bool
	runNoJournal bool
	runTextfile  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDataPath, "data", "d", "", "path to bar file, .json or .csv (required)")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy name")
	runCmd.Flags().IntVar(&runFast, "fast", 0, "ema-cross: fast EMA period")
	runCmd.Flags().IntVar(&runSlow, "slow", 0, "ema-cross: slow EMA period")
	runCmd.Flags().IntVar(&runADXPeriod, "adx-period", 0, "ema-cross-adx: ADX period (default 14)")
	runCmd.Flags().Float64Var(&runADXThresh, "adx-threshold", 0, "ema-cross-adx: minimum ADX to trade (default 20)")
	runCmd.Flags().StringVar(&runScript, "script", "", "scripted: index:signal list, e.g. 1:buy,5:sell")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "RNG seed (omit for a fresh seed, reported in the manifest)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "override the derived run id")
	runCmd.Flags().StringVar(&runFillAt, "fill-at", "", "fill price field (open, close)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "reject the run when bar data fails validation")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "directory for journal and manifest files")
	runCmd.Flags().BoolVar(&runOrg, "org", false, "also write an org-mode report next to the manifest")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "disable the trade journal")
	runCmd.Flags().StringVar(&runTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")

	runCmd.MarkFlagRequired("data")
}

// applyRunFlags copies explicitly set flags over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategy.Name = runStrategy
	}
	if flags.Changed("fast") {
		cfg.Strategy.Fast = runFast
	}
	if flags.Changed("slow") {
		cfg.Strategy.Slow = runSlow
	}
	if flags.Changed("adx-period") {
		cfg.Strategy.ADXPeriod = runADXPeriod
	}
	if flags.Changed("adx-threshold") {
		cfg.Strategy.ADXThreshold = runADXThresh
	}
	if flags.Changed("script") {
		cfg.Strategy.Script = runScript
	}
	if flags.Changed("seed") {
		seed := runSeed
		cfg.Run.Seed = &seed
	}
	if flags.Changed("run-id") {
		cfg.Run.RunID = runID
	}
	if flags.Changed("fill-at") {
		cfg.Run.FillAt = runFillAt
	}
	if flags.Changed("strict") {
		cfg.Data.Strict = runStrict
	}
	if flags.Changed("out") {
		cfg.Journal.Dir = runOutDir
		cfg.Manifest.Dir = runOutDir
	}
	if flags.Changed("org") {
		cfg.Manifest.Org = runOrg
	}
	if flags.Changed("no-journal") {
		cfg.Journal.Enabled = !runNoJournal
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = runTextfile
	}
	return cfg.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closer.Close()

	bars, err := market.LoadFile(runDataPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	log.Info("loaded bars", "path", runDataPath, "count", len(bars))

	params, err := cfg.StrategyParams()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec := obs.NewRecorder()
	engine := backtest.NewEngine(cfg.EngineConfig(),
		backtest.WithLogger(log),
		backtest.WithRecorder(rec),
	)

	start := time.Now()
	res, runErr := engine.RunNamed(ctx, bars, cfg.Strategy.Name, params)

	if cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("write metrics textfile", "path", cfg.Metrics.Textfile, "err", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("backtest: %w", runErr)
	}

	backtest.PrintResult(cmd.OutOrStdout(), res)
	log.Info("run complete", "run_id", res.RunID, "elapsed", time.Since(start))
	return nil
}
