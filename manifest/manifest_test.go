package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) Manifest {
	t.Helper()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Build(Input{
		RunID:         "01HMZ0000000000000000000AB",
		EngineVersion: "test",
		StrategyName:  "scripted",
		Seed:          42,
		Bars: []market.Bar{
			{T: t0, O: 100, H: 100, L: 100, C: 100},
			{T: t0.AddDate(0, 0, 2), O: 95, H: 95, L: 95, C: 95},
		},
		Report: dataguard.Report{OK: true, Checksum: "abc"},
		Config: Config{
			InitialCash:      "1000",
			PositionFraction: "1",
			FeeBps:           "0",
			Slippage:         "static(0)",
			FillAt:           "open",
			PeriodsPerYear:   252,
			PricePlaces:      8,
			SizePlaces:       8,
		},
		JournalChecksum: "def",
		JournalPaths:    journal.Paths{JSON: "j.json", CSV: "j.csv"},
		Metrics: metrics.Metrics{
			EquityFinal: decimal.NewFromInt(950),
			ReturnTotal: decimal.RequireFromString("-0.05"),
			CAGR:        -0.9,
			Sharpe:      0,
			MDD:         decimal.RequireFromString("0.05"),
			TradesCount: 2,
		},
	})
}

func TestBuild(t *testing.T) {
	t.Parallel()

	m := sample(t)
	assert.Empty(t, m.DigitalSeal)
	assert.Equal(t, Data{Checksum: "abc", Bars: 2, Start: "2024-01-01T00:00:00Z", End: "2024-01-03T00:00:00Z"}, m.Data)
	assert.Equal(t, Artifacts{JournalChecksum: "def", JournalJSON: "j.json", JournalCSV: "j.csv"}, m.Artifacts)
	assert.Equal(t, Metrics{
		EquityFinal: "950.00000000",
		ReturnTotal: "-0.05000000",
		CAGR:        "-0.90000000",
		Sharpe:      "0.00000000",
		MDD:         "0.05000000",
		TradesCount: 2,
	}, m.Metrics)
	assert.Nil(t, m.Warnings)
}

func TestSealAndVerify(t *testing.T) {
	t.Parallel()

	s := NewSealer([]byte("s3cret"))
	m, err := s.Seal(sample(t))
	require.NoError(t, err)
	assert.Len(t, m.DigitalSeal, 64)
	assert.True(t, s.Verify(m))

	// Sealing is a pure function of content and secret.
	again, err := s.Seal(sample(t))
	require.NoError(t, err)
	assert.Equal(t, m.DigitalSeal, again.DigitalSeal)

	// Any single metric change breaks the seal.
	mutated := m
	mutated.Metrics.Sharpe = "0.00000001"
	assert.False(t, s.Verify(mutated))

	mutated = m
	mutated.Metrics.TradesCount = 3
	assert.False(t, s.Verify(mutated))

	// A different secret does not verify.
	assert.False(t, NewSealer([]byte("other")).Verify(m))
	assert.False(t, NewSealer(nil).Verify(m))

	// Missing and garbage seals are false, not errors.
	m.DigitalSeal = ""
	assert.False(t, s.Verify(m))
	m.DigitalSeal = "zz"
	assert.False(t, s.Verify(m))
}

func TestUnkeyedSealIsPlainDigest(t *testing.T) {
	t.Parallel()

	s := NewSealer(nil)
	assert.False(t, s.Keyed())

	m, err := s.Seal(sample(t))
	require.NoError(t, err)

	b, err := Canonical(m)
	require.NoError(t, err)
	sum := sha256.Sum256(b)
	assert.Equal(t, hex.EncodeToString(sum[:]), m.DigitalSeal)
	assert.True(t, s.Verify(m))
}

func TestCanonicalIgnoresSeal(t *testing.T) {
	t.Parallel()

	m := sample(t)
	a, err := Canonical(m)
	require.NoError(t, err)

	m.DigitalSeal = "anything"
	b, err := Canonical(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"digitalSeal":""`)
}

func TestWriteReadFileKeepsSeal(t *testing.T) {
	t.Parallel()

	s := NewSealer([]byte("k"))
	m, err := s.Seal(sample(t))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(dir, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "01HMZ0000000000000000000AB_manifest.json"), path)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.True(t, s.Verify(got))

	// Edit one metric on disk.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := bytes.Replace(raw, []byte(`"950.00000000"`), []byte(`"951.00000000"`), 1)
	require.NoError(t, os.WriteFile(path, edited, 0o644))

	got, err = ReadFile(path)
	require.NoError(t, err)
	assert.False(t, s.Verify(got))
}

func TestReadFileRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"runId":"x","extra":1}`), 0o644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}

func TestWriteFileNeedsRunID(t *testing.T) {
	t.Parallel()

	_, err := WriteFile(t.TempDir(), Manifest{})
	assert.Error(t, err)
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	m := sample(t)
	m.Warnings = []string{"sharpe: non-finite value NaN coerced to 0"}
	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, WriteOrg(path, m))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.True(t, strings.HasPrefix(out, "* BACKTEST: scripted 2024-01-01T00:00:00Z"))
	assert.Contains(t, out, ":RUN_ID:      01HMZ0000000000000000000AB")
	assert.Contains(t, out, ":SEAL:        (none)")
	assert.Contains(t, out, "- Return:         *-5.00%*")
	assert.Contains(t, out, "- Max Drawdown:   *5.00%*")
	assert.Contains(t, out, "** Warnings\n- sharpe: non-finite value NaN coerced to 0")
}

func TestSealIgnoresOutputDirectory(t *testing.T) {
	t.Parallel()

	in := Input{
		RunID:           "01HMZ0000000000000000000AB",
		JournalChecksum: "def",
		JournalPaths: journal.Paths{
			JSON: filepath.Join("out", "a", "01HMZ0000000000000000000AB_journal.json"),
			CSV:  filepath.Join("out", "a", "01HMZ0000000000000000000AB_journal.csv"),
		},
	}
	moved := in
	moved.JournalPaths = journal.Paths{
		JSON: filepath.Join("/tmp", "elsewhere", "01HMZ0000000000000000000AB_journal.json"),
		CSV:  filepath.Join("/tmp", "elsewhere", "01HMZ0000000000000000000AB_journal.csv"),
	}

	a, b := Build(in), Build(moved)
	assert.Equal(t, "01HMZ0000000000000000000AB_journal.json", a.Artifacts.JournalJSON)
	assert.Equal(t, "01HMZ0000000000000000000AB_journal.csv", a.Artifacts.JournalCSV)

	sealer := NewSealer([]byte("k"))
	sa, err := sealer.Seal(a)
	require.NoError(t, err)
	sb, err := sealer.Seal(b)
	require.NoError(t, err)
	assert.Equal(t, sa.DigitalSeal, sb.DigitalSeal)
}

func TestWriteOrgReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run.org")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, WriteOrg(path, sample(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stale")

	err = WriteOrg(filepath.Join(dir, "missing", "run.org"), sample(t))
	assert.ErrorContains(t, err, "create temp for")
}
