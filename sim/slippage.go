package sim

import (
	"math"
	"math/rand"

	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
	"github.com/shopspring/decimal"
)

// SlippageModel returns the adverse price move, in basis points, applied to
// a fill of size on bars[index].
type SlippageModel interface {
	SlippageBps(bars []market.Bar, index int, side ledger.Side, size decimal.Decimal) decimal.Decimal
}

// Static applies the same slippage to every fill.
type Static struct {
	Bps decimal.Decimal
}

func (m Static) SlippageBps([]market.Bar, int, ledger.Side, decimal.Decimal) decimal.Decimal {
	return m.Bps
}

func (m Static) String() string { return "static(" + m.Bps.String() + ")" }

// Uniform draws slippage uniformly from [MinBps, MaxBps] at 4 decimal
// places. Rand must be the run's seeded generator so replays match.
type Uniform struct {
	MinBps decimal.Decimal
	MaxBps decimal.Decimal
	Rand   *rand.Rand
}

func (m Uniform) SlippageBps([]market.Bar, int, ledger.Side, decimal.Decimal) decimal.Decimal {
	if m.Rand == nil || !m.MaxBps.GreaterThan(m.MinBps) {
		return m.MinBps
	}
	frac := decimal.New(m.Rand.Int63n(10_001), -4)
	return m.MinBps.Add(m.MaxBps.Sub(m.MinBps).Mul(frac))
}

func (m Uniform) String() string {
	return "uniform(" + m.MinBps.String() + "," + m.MaxBps.String() + ")"
}

// VolumeImpact charges BaseBps plus ImpactBps for each unit of size/volume,
// capped at MaxBps when MaxBps is positive. Bars without a usable volume are
// charged the cap (or the base when there is no cap).
type VolumeImpact struct {
	BaseBps   decimal.Decimal
	ImpactBps decimal.Decimal
	MaxBps    decimal.Decimal
}

func (m VolumeImpact) SlippageBps(bars []market.Bar, index int, _ ledger.Side, size decimal.Decimal) decimal.Decimal {
	capped := m.MaxBps.IsPositive()

	vol := 0.0
	if index >= 0 && index < len(bars) {
		vol = bars[index].V
	}
	if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		if capped {
			return m.MaxBps
		}
		return m.BaseBps
	}

	participation := size.Abs().Div(decimal.NewFromFloat(vol))
	bps := m.BaseBps.Add(m.ImpactBps.Mul(participation)).Round(4)
	if capped && bps.GreaterThan(m.MaxBps) {
		return m.MaxBps
	}
	return bps
}

func (m VolumeImpact) String() string {
	return "volume(" + m.BaseBps.String() + "," + m.ImpactBps.String() + "," + m.MaxBps.String() + ")"
}
