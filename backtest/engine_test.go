package backtest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/internal/obs"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/manifest"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/pkg/id"
	"github.com/rustyeddy/btledger/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quiet() Option { return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func ohlc(i int, o, c float64) market.Bar {
	return market.Bar{T: t0.AddDate(0, 0, i), O: o, H: math.Max(o, c), L: math.Min(o, c), C: c, V: 1000}
}

// threeBars has closes 100, 105, 95 and opens 100, 100, 95.
func threeBars() []market.Bar {
	return []market.Bar{ohlc(0, 100, 100), ohlc(1, 100, 105), ohlc(2, 95, 95)}
}

func walk(n int) []market.Bar {
	bars := make([]market.Bar, n)
	p := 100.0
	for i := range bars {
		next := p * (1 + 0.02*math.Sin(float64(i)*0.7))
		bars[i] = ohlc(i, p, next)
		p = next
	}
	return bars
}

func seeded(seed int64) *int64 { return &seed }

func baseConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCash = d("1000")
	cfg.Seed = seeded(1)
	return cfg
}

func TestBuyThenSellEndToEnd(t *testing.T) {
	cfg := baseConfig()
	cfg.FillAt = market.FieldOpen

	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy, 2: strategies.Sell})
	res, err := NewEngine(cfg, quiet()).Run(context.Background(), threeBars(), strat)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Price.Equal(d("100")))
	assert.True(t, res.Trades[1].Price.Equal(d("95")))
	assert.True(t, res.Final.Cash.Equal(d("950")), res.Final.Cash.String())
	assert.True(t, res.Final.Pos.IsZero())

	require.Len(t, res.Equity, 3)
	assert.True(t, res.Equity[0].Equal(d("1000")))
	assert.True(t, res.Equity[1].Equal(d("1050")))
	assert.True(t, res.Equity[2].Equal(d("950")))

	assert.Equal(t, 2, res.Metrics.TradesCount)
	assert.True(t, res.Metrics.EquityFinal.Equal(d("950")))
	assert.True(t, res.Metrics.ReturnTotal.Equal(d("-0.05")))

	m := res.Manifest
	assert.Equal(t, "950.00000000", m.Metrics.EquityFinal)
	assert.Equal(t, 2, m.Metrics.TradesCount)
	assert.Equal(t, "open", m.Config.FillAt)
	assert.Equal(t, dataguard.Checksum(threeBars()), m.Data.Checksum)
	assert.Equal(t, res.JournalChecksum, m.Artifacts.JournalChecksum)
	assert.Len(t, res.JournalChecksum, 64)
	assert.True(t, manifest.NewSealer(nil).Verify(m))
	assert.True(t, id.Valid(res.RunID))
}

func TestBuyAtCloseThenSell(t *testing.T) {
	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy, 2: strategies.Sell})
	res, err := NewEngine(baseConfig(), quiet()).Run(context.Background(), threeBars(), strat)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Price.Equal(d("105")))
	// 1000/105 units sold at 95.
	assert.True(t, res.Final.Cash.GreaterThan(d("904.76")))
	assert.True(t, res.Final.Cash.LessThan(d("904.77")))
	assert.False(t, res.Final.Cash.IsNegative())
}

func TestRunsAreDeterministic(t *testing.T) {
	cfg := baseConfig()
	cfg.Seed = seeded(20240101)
	cfg.FeeRate = d("0.001")
	cfg.Slippage = Slippage{Model: SlippageUniform, MinBps: d("1"), MaxBps: d("8")}
	cfg.Secret = []byte("k")

	bars := walk(200)
	run := func() *Result {
		c := cfg
		c.JournalDir = t.TempDir()
		c.ManifestDir = c.JournalDir
		res, err := NewEngine(c, quiet()).RunNamed(context.Background(), bars, "random", strategies.Params{})
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()

	// Same inputs in different output directories: identical files.
	for _, pair := range [][2]string{
		{a.JournalPaths.JSON, b.JournalPaths.JSON},
		{a.JournalPaths.CSV, b.JournalPaths.CSV},
		{a.ManifestPath, b.ManifestPath},
	} {
		require.NotEqual(t, pair[0], pair[1])
		fa, err := os.ReadFile(pair[0])
		require.NoError(t, err)
		fb, err := os.ReadFile(pair[1])
		require.NoError(t, err)
		assert.Equal(t, fa, fb, filepath.Base(pair[0]))
	}

	require.NotEmpty(t, a.Trades)
	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, int64(20240101), a.Seed)
	assert.Equal(t, a.JournalChecksum, b.JournalChecksum)
	assert.Equal(t, a.Manifest.DigitalSeal, b.Manifest.DigitalSeal)
	assert.Equal(t, a.Manifest, b.Manifest)

	ja, err := journal.Canonical(recordsOf(t, a))
	require.NoError(t, err)
	jb, err := journal.Canonical(recordsOf(t, b))
	require.NoError(t, err)
	assert.Equal(t, ja, jb)

	cfg.Seed = seeded(7)
	c, err := NewEngine(cfg, quiet()).RunNamed(context.Background(), bars, "random", strategies.Params{})
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, c.RunID)
}

// recordsOf rebuilds the journal of a result from its fills.
func recordsOf(t *testing.T, r *Result) []journal.Record {
	t.Helper()
	j, err := journal.Start(r.RunID, "", journal.DefaultPrecision())
	require.NoError(t, err)
	st := ledger.State{}
	for _, f := range r.Trades {
		if f.Side == ledger.Buy {
			st.Pos = f.Size
		} else {
			st.Pos = decimal.Zero
		}
		require.NoError(t, j.Append(f, st))
	}
	return j.Records()
}

func TestUnseededRunReportsSeed(t *testing.T) {
	cfg := baseConfig()
	cfg.Seed = nil

	bars := walk(50)
	a, err := NewEngine(cfg, quiet()).RunNamed(context.Background(), bars, "random", strategies.Params{})
	require.NoError(t, err)

	cfg.Seed = seeded(a.Seed)
	b, err := NewEngine(cfg, quiet()).RunNamed(context.Background(), bars, "random", strategies.Params{})
	require.NoError(t, err)

	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, a.JournalChecksum, b.JournalChecksum)
}

func TestInsufficientData(t *testing.T) {
	for _, bars := range [][]market.Bar{nil, threeBars()[:1]} {
		_, err := NewEngine(baseConfig(), quiet()).Run(context.Background(), bars, strategies.Noop{})
		assert.ErrorIs(t, err, ErrInsufficientData)
	}
}

func TestStrictDataRejected(t *testing.T) {
	bars := threeBars()
	bars[2].T = bars[1].T

	cfg := baseConfig()
	cfg.Data.Strict = true
	_, err := NewEngine(cfg, quiet()).Run(context.Background(), bars, strategies.Noop{})
	assert.ErrorIs(t, err, ErrDataRejected)
	assert.ErrorContains(t, err, "duplicate timestamp")
}

func TestLenientDataRecordsNoChecksum(t *testing.T) {
	bars := threeBars()
	bars[2].T = bars[1].T

	res, err := NewEngine(baseConfig(), quiet()).Run(context.Background(), bars, strategies.Noop{})
	require.NoError(t, err)
	assert.Equal(t, dataguard.NoChecksum, res.Manifest.Data.Checksum)
	assert.False(t, res.Data.OK)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "duplicate timestamp")
}

func TestIllegalSignalsIgnored(t *testing.T) {
	bars := walk(6)
	strat := strategies.NewScripted(map[int]strategies.Signal{
		1: strategies.Sell, // flat: ignored
		2: strategies.Buy,
		3: strategies.Buy, // long: ignored
		4: strategies.Sell,
		5: strategies.Sell, // flat: ignored
	})
	res, err := NewEngine(baseConfig(), quiet()).Run(context.Background(), bars, strat)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, 2, res.Trades[0].Index)
	assert.Equal(t, 4, res.Trades[1].Index)
	assert.Zero(t, res.Skipped)
}

func TestNonFinitePriceIsSkipped(t *testing.T) {
	bars := threeBars()
	bars[1].C = math.NaN()

	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy})
	res, err := NewEngine(baseConfig(), quiet()).Run(context.Background(), bars, strat)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Skipped)
	// The last finite close is carried forward.
	assert.True(t, res.Equity[1].Equal(d("1000")))
	assert.Equal(t, dataguard.NoChecksum, res.Manifest.Data.Checksum)
}

func TestWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.JournalDir = filepath.Join(dir, "journal")
	cfg.ManifestDir = filepath.Join(dir, "manifest")
	cfg.OrgReport = true
	cfg.Secret = []byte("s3cret")

	rec := obs.NewRecorder()
	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy, 2: strategies.Sell})
	res, err := NewEngine(cfg, quiet(), WithRecorder(rec)).Run(context.Background(), threeBars(), strat)
	require.NoError(t, err)

	require.NotEmpty(t, res.ManifestPath)
	m, err := manifest.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	assert.True(t, manifest.NewSealer([]byte("s3cret")).Verify(m))
	assert.False(t, manifest.NewSealer(nil).Verify(m))

	assert.Equal(t, filepath.Base(res.JournalPaths.JSON), m.Artifacts.JournalJSON)
	for _, name := range []string{m.Artifacts.JournalJSON, m.Artifacts.JournalCSV} {
		recs, err := journal.ReadFile(filepath.Join(cfg.JournalDir, name))
		require.NoError(t, err)
		sum, err := journal.ChecksumRecords(recs)
		require.NoError(t, err)
		assert.Equal(t, m.Artifacts.JournalChecksum, sum)
	}

	assert.FileExists(t, strings.TrimSuffix(res.ManifestPath, ".json")+".org")

	want := `
# HELP btledger_fills_total Executed fills by side.
# TYPE btledger_fills_total counter
btledger_fills_total{side="buy"} 1
btledger_fills_total{side="sell"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(want), "btledger_fills_total"))
}

func TestJournalDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.Journal = false

	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy})
	res, err := NewEngine(cfg, quiet()).Run(context.Background(), threeBars(), strat)
	require.NoError(t, err)

	assert.Empty(t, res.JournalChecksum)
	assert.Empty(t, res.Manifest.Artifacts.JournalChecksum)
	assert.Len(t, res.Trades, 1)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(baseConfig(), quiet()).Run(ctx, threeBars(), strategies.Noop{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no cash", func(c *Config) { c.InitialCash = decimal.Zero }},
		{"fraction above one", func(c *Config) { c.PositionFraction = d("1.5") }},
		{"negative fee", func(c *Config) { c.FeeRate = d("-0.1") }},
		{"bad fill price", func(c *Config) { c.FillAt = "high" }},
		{"bad slippage model", func(c *Config) { c.Slippage.Model = "magic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(cfg, quiet()).Run(context.Background(), threeBars(), strategies.Noop{})
			assert.Error(t, err)
		})
	}
}

func TestPrintResult(t *testing.T) {
	cfg := baseConfig()
	cfg.FillAt = market.FieldOpen
	strat := strategies.NewScripted(map[int]strategies.Signal{1: strategies.Buy, 2: strategies.Sell})
	res, err := NewEngine(cfg, quiet()).Run(context.Background(), threeBars(), strat)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run ID:        "+res.RunID)
	assert.Contains(t, out, "Strategy:      scripted")
	assert.Contains(t, out, "Final Equity:  950.00")
	assert.Contains(t, out, "Return:        -5.00%")
	assert.Contains(t, out, "Seal:          "+res.Manifest.DigitalSeal)
}
