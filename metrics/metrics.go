// Package metrics computes performance statistics over an equity series.
package metrics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPeriodsPerYear annualizes daily bars.
const DefaultPeriodsPerYear = 252

type Params struct {
	// PeriodsPerYear annualizes CAGR and Sharpe. Zero means 252.
	PeriodsPerYear int
	// Periods is the number of periods the series spans. Zero means
	// len(equity)-1, one period per bar.
	Periods int
}

// Metrics summarizes a run. TradesCount is filled in by the caller.
type Metrics struct {
	EquityFinal decimal.Decimal
	ReturnTotal decimal.Decimal
	CAGR        float64
	Sharpe      float64
	MDD         decimal.Decimal
	TradesCount int
}

// Compute derives the run statistics from equity, one value per bar with
// equity[0] the initial capital.
//
// Results that would be NaN or infinite are set to 0; each such coercion is
// described in the returned warnings.
func Compute(equity []decimal.Decimal, p Params) (Metrics, []string) {
	var (
		m        Metrics
		warnings []string
	)
	if len(equity) == 0 {
		return m, nil
	}

	ppy := p.PeriodsPerYear
	if ppy <= 0 {
		ppy = DefaultPeriodsPerYear
	}
	periods := p.Periods
	if periods <= 0 {
		periods = len(equity) - 1
	}

	initial, final := equity[0], equity[len(equity)-1]
	m.EquityFinal = final

	if initial.IsPositive() {
		m.ReturnTotal = final.Sub(initial).Div(initial)
	} else {
		warnings = append(warnings, fmt.Sprintf("return: initial equity %s is not positive, reported as 0", initial))
	}

	if periods > 0 && initial.IsPositive() && final.IsPositive() {
		ratio := final.Div(initial).InexactFloat64()
		cagr := math.Pow(ratio, float64(ppy)/float64(periods)) - 1
		m.CAGR, warnings = finite("cagr", cagr, warnings)
	}

	m.Sharpe, warnings = finite("sharpe", sharpe(returns(equity), ppy), warnings)
	m.MDD = maxDrawdown(equity)

	return m, warnings
}

func finite(name string, v float64, warnings []string) (float64, []string) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, append(warnings, fmt.Sprintf("%s: non-finite value %v coerced to 0", name, v))
	}
	return v, warnings
}

// returns are the per-step simple returns. Steps from a zero value are
// skipped.
func returns(equity []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(equity))
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev.IsZero() {
			continue
		}
		out = append(out, equity[i].Sub(prev).Div(prev))
	}
	return out
}

// sharpe is the annualized mean over sample standard deviation, with a zero
// risk-free rate. It is 0 for fewer than two returns or zero deviation.
func sharpe(rets []decimal.Decimal, ppy int) float64 {
	n := len(rets)
	if n < 2 {
		return 0
	}

	xs := make([]float64, n)
	mean := 0.0
	for i, r := range rets {
		xs[i] = r.InexactFloat64()
		mean += xs[i]
	}
	mean /= float64(n)

	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(float64(ppy))
}

// maxDrawdown is the largest fall from a running peak, as a fraction of
// that peak.
func maxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	mdd := decimal.Zero
	peak := equity[0]
	for _, eq := range equity {
		if eq.GreaterThan(peak) {
			peak = eq
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(eq).Div(peak); dd.GreaterThan(mdd) {
			mdd = dd
		}
	}
	return mdd
}
