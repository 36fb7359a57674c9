package strategies

import (
	"fmt"

	"github.com/rustyeddy/btledger/indicators"
	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
)

// EMACross buys when a fast EMA of closes crosses above a slow one and sells
// on the cross back down. It fires on the cross event only, not on every
// bar while the averages stay crossed.
type EMACross struct {
	fast *indicators.EMA
	slow *indicators.EMA

	// -1 fast below slow, 0 unknown, +1 fast above slow
	prevRel int
	name    string
}

func NewEMACross(fastPeriod, slowPeriod int) (*EMACross, error) {
	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("ema-cross: fast period %d must be below slow period %d", fastPeriod, slowPeriod)
	}
	f, err := indicators.NewEMA(fastPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema-cross: %w", err)
	}
	s, err := indicators.NewEMA(slowPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema-cross: %w", err)
	}
	return &EMACross{
		fast: f,
		slow: s,
		name: fmt.Sprintf("ema-cross(%d,%d)", fastPeriod, slowPeriod),
	}, nil
}

func (x *EMACross) Name() string { return x.name }

// Warmup resets the averages and primes them with bars[0], the one bar
// OnBar never receives. Later bars are not read.
func (x *EMACross) Warmup(bars []market.Bar) {
	x.fast.Reset()
	x.slow.Reset()
	x.prevRel = 0
	if len(bars) > 0 {
		x.fast.Update(bars[0].C)
		x.slow.Update(bars[0].C)
	}
}

func (x *EMACross) OnBar(bar market.Bar, _ int, pos *ledger.Position) Signal {
	x.fast.Update(bar.C)
	x.slow.Update(bar.C)

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

	switch {
	case prev == -1 && rel == +1 && pos == nil:
		return Buy
	case prev == +1 && rel == -1 && pos != nil:
		return Sell
	}
	return Hold
}
