package backtest

import (
	"fmt"
	"math/rand"

	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/metrics"
	"github.com/rustyeddy/btledger/sim"
	"github.com/shopspring/decimal"
)

// Slippage model names.
const (
	SlippageStatic  = "static"
	SlippageUniform = "uniform"
	SlippageVolume  = "volume"
)

// Slippage selects and parameterizes the slippage model. All values are in
// basis points.
type Slippage struct {
	Model        string // static (default), uniform or volume
	Bps          decimal.Decimal
	MinBps       decimal.Decimal
	MaxBps       decimal.Decimal
	ImpactBps    decimal.Decimal
	MaxImpactBps decimal.Decimal
}

// build returns the model for one run. r is the run's generator.
func (s Slippage) build(r *rand.Rand) (sim.SlippageModel, error) {
	switch s.Model {
	case "", SlippageStatic:
		return sim.Static{Bps: s.Bps}, nil
	case SlippageUniform:
		if s.MaxBps.LessThan(s.MinBps) {
			return nil, fmt.Errorf("uniform slippage: max %s below min %s", s.MaxBps, s.MinBps)
		}
		return sim.Uniform{MinBps: s.MinBps, MaxBps: s.MaxBps, Rand: r}, nil
	case SlippageVolume:
		return sim.VolumeImpact{BaseBps: s.Bps, ImpactBps: s.ImpactBps, MaxBps: s.MaxImpactBps}, nil
	}
	return nil, fmt.Errorf("unknown slippage model %q", s.Model)
}

// Config is everything a run needs besides bars and a strategy.
type Config struct {
	InitialCash      decimal.Decimal
	PositionFraction decimal.Decimal // zero means 1
	FeeRate          decimal.Decimal // fraction of notional
	Slippage         Slippage
	FillAt           market.Field // zero means close

	// Seed makes the run reproducible. Nil draws a fresh seed, which is
	// reported in the result.
	Seed *int64
	// RunID overrides the derived run identifier.
	RunID string

	PeriodsPerYear int
	Data           dataguard.Options

	Journal    bool
	JournalDir string // empty keeps the journal in memory
	Precision  journal.Precision

	ManifestDir string // empty skips writing the manifest
	OrgReport   bool   // also write ${runId}_manifest.org next to the manifest
	Secret      []byte // seal key; empty means an unkeyed digest
}

// DefaultConfig is a 10,000 cash, all-in, cost-free run with journaling.
func DefaultConfig() Config {
	return Config{
		InitialCash:      decimal.NewFromInt(10_000),
		PositionFraction: decimal.NewFromInt(1),
		FillAt:           market.FieldClose,
		PeriodsPerYear:   metrics.DefaultPeriodsPerYear,
		Data:             dataguard.DefaultOptions(),
		Journal:          true,
		Precision:        journal.DefaultPrecision(),
	}
}

func (c Config) fraction() decimal.Decimal {
	if c.PositionFraction.IsZero() {
		return decimal.NewFromInt(1)
	}
	return c.PositionFraction
}

func (c Config) fillAt() market.Field {
	if c.FillAt == "" {
		return market.FieldClose
	}
	return c.FillAt
}

func (c Config) precision() journal.Precision {
	if c.Precision == (journal.Precision{}) {
		return journal.DefaultPrecision()
	}
	return c.Precision
}

func (c Config) validate() error {
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("backtest: initial cash must be positive, got %s", c.InitialCash)
	}
	if f := c.fraction(); !f.IsPositive() || f.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("backtest: position fraction must be in (0, 1], got %s", f)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("backtest: fee rate must be in [0, 1), got %s", c.FeeRate)
	}
	switch c.fillAt() {
	case market.FieldOpen, market.FieldClose:
	default:
		return fmt.Errorf("backtest: fill price must be open or close, got %q", c.FillAt)
	}
	return nil
}
