package strategies

import (
	"fmt"

	"github.com/rustyeddy/btledger/indicators"
	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
)

const (
	DefaultADXPeriod    = 14
	DefaultADXThreshold = 20.0
)

// EMACrossADX is EMACross gated by trend strength: a cross only trades once
// the ADX is ready and at or above the threshold, and the directional index
// agrees with the cross (+DI over -DI to buy, the reverse to sell).
type EMACrossADX struct {
	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX

	threshold float64
	prevRel   int
	name      string
}

// NewEMACrossADX builds the strategy. A zero adxPeriod or threshold takes the
// default.
func NewEMACrossADX(fastPeriod, slowPeriod, adxPeriod int, threshold float64) (*EMACrossADX, error) {
	if adxPeriod == 0 {
		adxPeriod = DefaultADXPeriod
	}
	if threshold == 0 {
		threshold = DefaultADXThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("ema-cross-adx: threshold must be in [0, 100], got %g", threshold)
	}
	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("ema-cross-adx: fast period %d must be below slow period %d", fastPeriod, slowPeriod)
	}
	f, err := indicators.NewEMA(fastPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema-cross-adx: %w", err)
	}
	s, err := indicators.NewEMA(slowPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema-cross-adx: %w", err)
	}
	a, err := indicators.NewADX(adxPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema-cross-adx: %w", err)
	}
	return &EMACrossADX{
		fast:      f,
		slow:      s,
		adx:       a,
		threshold: threshold,
		name:      fmt.Sprintf("ema-cross-adx(%d,%d,%d@%g)", fastPeriod, slowPeriod, adxPeriod, threshold),
	}, nil
}

func (x *EMACrossADX) Name() string { return x.name }

func (x *EMACrossADX) Warmup(bars []market.Bar) {
	x.fast.Reset()
	x.slow.Reset()
	x.adx.Reset()
	x.prevRel = 0
	if len(bars) > 0 {
		x.update(bars[0])
	}
}

func (x *EMACrossADX) update(bar market.Bar) {
	x.fast.Update(bar.C)
	x.slow.Update(bar.C)
	x.adx.Update(bar.H, bar.L, bar.C)
}

func (x *EMACrossADX) OnBar(bar market.Bar, _ int, pos *ledger.Position) Signal {
	x.update(bar)

	if !x.fast.Ready() || !x.slow.Ready() {
		return Hold
	}

	rel := 0
	if diff := x.fast.Value() - x.slow.Value(); diff > 0 {
		rel = +1
	} else if diff < 0 {
		rel = -1
	}

	prev := x.prevRel
	if rel != 0 {
		x.prevRel = rel
	}

	if !x.adx.Ready() || x.adx.Value() < x.threshold {
		return Hold
	}

	switch {
	case prev == -1 && rel == +1 && pos == nil && x.adx.PlusDI() > x.adx.MinusDI():
		return Buy
	case prev == +1 && rel == -1 && pos != nil && x.adx.MinusDI() > x.adx.PlusDI():
		return Sell
	}
	return Hold
}
