package metrics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(vs ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestSteadyGrowth(t *testing.T) {
	t.Parallel()

	m, warnings := Compute(series("100", "110", "121"), Params{})
	assert.Empty(t, warnings)

	assert.True(t, m.EquityFinal.Equal(decimal.NewFromInt(121)))
	assert.True(t, m.ReturnTotal.Equal(decimal.RequireFromString("0.21")))
	assert.True(t, m.MDD.IsZero())
	// Both steps return exactly 10%, so the deviation is zero and Sharpe is
	// reported as 0 rather than an unbounded ratio.
	assert.Zero(t, m.Sharpe)
	assert.Greater(t, m.CAGR, 0.0)
}

func TestDrawdownAndRecovery(t *testing.T) {
	t.Parallel()

	m, _ := Compute(series("100", "90", "100"), Params{})
	assert.True(t, m.MDD.Equal(decimal.RequireFromString("0.1")), m.MDD.String())
	assert.True(t, m.ReturnTotal.IsZero())
	assert.InDelta(t, 0.0, m.CAGR, 1e-12)
}

func TestCAGRAnnualization(t *testing.T) {
	t.Parallel()

	// Doubling over one year of periods.
	m, _ := Compute(series("100", "150", "200"), Params{PeriodsPerYear: 2})
	assert.InDelta(t, 1.0, m.CAGR, 1e-12)

	// Explicit period count overrides the bar count.
	m, _ = Compute(series("100", "150", "200"), Params{PeriodsPerYear: 4, Periods: 4})
	assert.InDelta(t, 1.0, m.CAGR, 1e-12)
}

func TestSharpeSampleStdev(t *testing.T) {
	t.Parallel()

	// Returns 0.1 and -0.1: mean 0, Sharpe 0.
	m, _ := Compute(series("100", "110", "99"), Params{})
	assert.InDelta(t, 0.0, m.Sharpe, 1e-12)

	// Returns 0.1, 0, 0.1 (sample sd = sqrt(1/300)).
	m, _ = Compute(series("100", "110", "110", "121"), Params{PeriodsPerYear: 1})
	want := (0.2 / 3) / math.Sqrt(0.01/3)
	assert.InDelta(t, want, m.Sharpe, 1e-9)
}

func TestDegenerateInputs(t *testing.T) {
	t.Parallel()

	m, warnings := Compute(nil, Params{})
	assert.Empty(t, warnings)
	assert.True(t, m.EquityFinal.IsZero())

	m, warnings = Compute(series("100"), Params{})
	assert.Empty(t, warnings)
	assert.Zero(t, m.CAGR)
	assert.Zero(t, m.Sharpe)

	m, warnings = Compute(series("0", "10"), Params{})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "return")
	assert.True(t, m.ReturnTotal.IsZero())
}

func TestNonFiniteIsCoercedAndReported(t *testing.T) {
	t.Parallel()

	// A thousandfold gain annualized over a single period of 252 overflows.
	m, warnings := Compute(series("1", "1000"), Params{})
	assert.Zero(t, m.CAGR)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "cagr")
}
