// Package backtest runs a strategy over a bar series and produces the
// journal, equity curve, metrics and sealed manifest for the run.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/internal/obs"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/manifest"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/metrics"
	"github.com/rustyeddy/btledger/pkg/id"
	"github.com/rustyeddy/btledger/pkg/rng"
	"github.com/rustyeddy/btledger/sim"
	"github.com/rustyeddy/btledger/strategies"
	"github.com/shopspring/decimal"
)

// EngineVersion is recorded in every manifest. Release builds set it with
// -ldflags "-X github.com/rustyeddy/btledger/backtest.EngineVersion=...".
var EngineVersion = "0.1.0-dev"

var (
	ErrInsufficientData = errors.New("backtest: need at least 2 bars")
	ErrDataRejected     = errors.New("backtest: bar data rejected")
)

// Result is everything a run produced.
type Result struct {
	RunID    string
	Seed     int64
	Strategy string
	Bars     int
	Data     dataguard.Report

	Trades  []ledger.Fill
	Equity  []decimal.Decimal
	Final   ledger.State
	Metrics metrics.Metrics

	Warnings []string
	Skipped  int

	JournalChecksum string
	JournalPaths    journal.Paths

	Manifest     manifest.Manifest
	ManifestPath string
}

type Engine struct {
	cfg Config
	log *slog.Logger
	rec *obs.Recorder
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithRecorder(r *obs.Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run simulates strat over bars.
func (e *Engine) Run(ctx context.Context, bars []market.Bar, strat strategies.Strategy) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	return e.run(ctx, bars, func(*rand.Rand) (strategies.Strategy, error) { return strat, nil })
}

// RunNamed builds a bundled strategy from the run's own generator and runs
// it, so strategies that draw random numbers replay with the seed.
func (e *Engine) RunNamed(ctx context.Context, bars []market.Bar, name string, p strategies.Params) (*Result, error) {
	return e.run(ctx, bars, func(r *rand.Rand) (strategies.Strategy, error) {
		return strategies.ByName(name, p, r)
	})
}

func (e *Engine) run(ctx context.Context, bars []market.Bar, build func(*rand.Rand) (strategies.Strategy, error)) (*Result, error) {
	started := time.Now()
	outcome := "error"
	defer func() { e.rec.Run(outcome, time.Since(started)) }()

	if len(bars) < 2 {
		outcome = "insufficient_data"
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientData, len(bars))
	}
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}

	res := &Result{Bars: len(bars)}

	report := dataguard.Validate(bars, e.cfg.Data)
	res.Data = report
	e.rec.DataIssues(len(report.Errors))
	dataChecksum := report.Checksum
	if !report.OK {
		if e.cfg.Data.Strict {
			outcome = "rejected"
			e.log.Error("bar data rejected", "issues", len(report.Errors), "first", report.Errors[0])
			return nil, fmt.Errorf("%w: %s", ErrDataRejected, strings.Join(report.Errors, "; "))
		}
		for _, issue := range report.Errors {
			e.log.Warn("bar data issue", "issue", issue)
		}
		res.Warnings = append(res.Warnings, report.Errors...)
		dataChecksum = dataguard.NoChecksum
	}

	src := rng.New(e.cfg.Seed)
	res.Seed = src.Seed()

	res.RunID = e.cfg.RunID
	if res.RunID == "" {
		runID, err := id.FromEntropy(bars[0].T, src)
		if err != nil {
			return nil, fmt.Errorf("backtest: run id: %w", err)
		}
		res.RunID = runID
	}

	strat, err := build(src.Rand)
	if err != nil {
		return nil, fmt.Errorf("backtest: strategy: %w", err)
	}
	res.Strategy = strat.Name()

	slip, err := e.cfg.Slippage.build(src.Rand)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	simulator := sim.Simulator{
		FeeRate:  e.cfg.FeeRate,
		Fraction: e.cfg.fraction(),
		Slippage: slip,
		FillAt:   e.cfg.fillAt(),
	}

	log := e.log.With("run_id", res.RunID)
	log.Info("run started", "strategy", res.Strategy, "bars", len(bars), "seed", res.Seed)

	var jrnl *journal.Journal
	if e.cfg.Journal {
		jrnl, err = journal.Start(res.RunID, e.cfg.JournalDir, e.cfg.precision())
		if err != nil {
			log.Error("journal unavailable, continuing without it", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("journal: %v", err))
		}
	}

	st := ledger.New(e.cfg.InitialCash)
	strat.Warmup(bars)

	res.Equity = make([]decimal.Decimal, len(bars))
	res.Equity[0] = e.cfg.InitialCash
	lastClose := decimal.Zero
	if c := bars[0].C; finitePositive(c) {
		lastClose = decimal.NewFromFloat(c)
	}

	for i := 1; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			outcome = "canceled"
			return nil, fmt.Errorf("backtest: canceled at bar %d: %w", i, err)
		}
		bar := bars[i]
		e.rec.Bar()

		sig := strat.OnBar(bar, i, st.Position())
		if side, ok := sig.Side(); ok && legal(st, side) {
			next, fill, err := simulator.Execute(st, side, bars, i)
			switch {
			case errors.Is(err, sim.ErrSkipped):
				res.Skipped++
				e.rec.Skipped()
				log.Debug("signal skipped", "bar", i, "signal", sig, "reason", err)
			case err != nil:
				res.Skipped++
				e.rec.Skipped()
				log.Warn("fill rejected", "bar", i, "signal", sig, "error", err)
				res.Warnings = append(res.Warnings, err.Error())
			default:
				st = next
				res.Trades = append(res.Trades, *fill)
				e.rec.Fill(string(fill.Side))
				if jrnl != nil {
					if err := jrnl.Append(*fill, st); err != nil {
						log.Error("journal append failed", "bar", i, "error", err)
					}
				}
			}
		}

		if finitePositive(bar.C) {
			lastClose = decimal.NewFromFloat(bar.C)
		}
		res.Equity[i] = st.Equity(lastClose)
	}
	res.Final = st

	if jrnl != nil {
		sum, err := jrnl.Finalize()
		if err != nil {
			log.Error("journal write failed, keeping checksum", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("journal: %v", err))
		}
		res.JournalChecksum = sum
		res.JournalPaths = jrnl.Paths()
	}

	m, warnings := metrics.Compute(res.Equity, metrics.Params{PeriodsPerYear: e.cfg.PeriodsPerYear})
	m.TradesCount = len(res.Trades)
	for _, w := range warnings {
		log.Warn("metric coerced", "detail", w)
	}
	res.Metrics = m
	res.Warnings = append(res.Warnings, warnings...)

	man := manifest.Build(manifest.Input{
		RunID:           res.RunID,
		EngineVersion:   EngineVersion,
		StrategyName:    res.Strategy,
		Seed:            res.Seed,
		Bars:            bars,
		Report:          dataguard.Report{OK: report.OK, Checksum: dataChecksum},
		Config:          e.manifestConfig(slip),
		JournalChecksum: res.JournalChecksum,
		JournalPaths:    res.JournalPaths,
		Metrics:         m,
		Warnings:        res.Warnings,
	})
	sealed, err := manifest.NewSealer(e.cfg.Secret).Seal(man)
	if err != nil {
		log.Error("manifest seal failed", "error", err)
		sealed = man
	}
	res.Manifest = sealed

	if e.cfg.ManifestDir != "" {
		path, err := manifest.WriteFile(e.cfg.ManifestDir, sealed)
		if err != nil {
			log.Error("manifest write failed", "error", err)
		} else {
			res.ManifestPath = path
		}
		if err == nil && e.cfg.OrgReport {
			org := strings.TrimSuffix(path, filepath.Ext(path)) + ".org"
			if err := manifest.WriteOrg(org, sealed); err != nil {
				log.Error("org report write failed", "error", err)
			}
		}
	}

	outcome = "ok"
	e.rec.FinalEquity(m.EquityFinal.InexactFloat64())
	log.Info("run finished",
		"trades", m.TradesCount,
		"skipped", res.Skipped,
		"equity_final", m.EquityFinal.String(),
		"journal_checksum", res.JournalChecksum,
		"seal", sealed.DigitalSeal,
	)
	return res, nil
}

// legal reports whether side is a valid transition from st. Buys while long
// and sells while flat are ignored.
func legal(st ledger.State, side ledger.Side) bool {
	if side == ledger.Buy {
		return st.Flat()
	}
	return !st.Flat()
}

func finitePositive(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}

func (e *Engine) manifestConfig(slip sim.SlippageModel) manifest.Config {
	return manifest.Config{
		InitialCash:      e.cfg.InitialCash.String(),
		PositionFraction: e.cfg.fraction().String(),
		FeeBps:           e.cfg.FeeRate.Shift(4).String(),
		Slippage:         fmt.Sprint(slip),
		FillAt:           string(e.cfg.fillAt()),
		PeriodsPerYear:   periodsPerYear(e.cfg.PeriodsPerYear),
		StrictData:       e.cfg.Data.Strict,
		PricePlaces:      e.cfg.precision().PricePlaces,
		SizePlaces:       e.cfg.precision().SizePlaces,
	}
}

func periodsPerYear(n int) int {
	if n <= 0 {
		return metrics.DefaultPeriodsPerYear
	}
	return n
}
