// Package sim turns strategy signals into ledger fills: it picks the bar's
// reference price, asks a SlippageModel for the adverse move and applies
// the fee.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
	"github.com/shopspring/decimal"
)

// ErrSkipped marks a signal that could not be filled and was ignored. The
// wrapped error says why.
var ErrSkipped = errors.New("sim: fill skipped")

// Simulator executes signals against a ledger.State.
type Simulator struct {
	FeeRate  decimal.Decimal // fraction of notional, e.g. 0.001 for 10 bps
	Fraction decimal.Decimal // share of cash deployed per buy, in (0, 1]
	Slippage SlippageModel   // nil means no slippage
	FillAt   market.Field    // bar price used for fills; close when empty
}

func (s Simulator) model() SlippageModel {
	if s.Slippage == nil {
		return Static{}
	}
	return s.Slippage
}

func (s Simulator) fraction() decimal.Decimal {
	if s.Fraction.IsZero() {
		return decimal.NewFromInt(1)
	}
	return s.Fraction
}

// Execute fills side on bars[index]. On success it returns the new state
// and the fill. When the fill is skipped the error wraps ErrSkipped and the
// input state is returned unchanged.
func (s Simulator) Execute(st ledger.State, side ledger.Side, bars []market.Bar, index int) (ledger.State, *ledger.Fill, error) {
	if index < 0 || index >= len(bars) {
		return st, nil, fmt.Errorf("sim: bar index %d out of range [0,%d)", index, len(bars))
	}
	bar := bars[index]

	field := s.FillAt
	if field == "" {
		field = market.FieldClose
	}
	ref := bar.Price(field)
	if math.IsNaN(ref) || math.IsInf(ref, 0) || ref <= 0 {
		return st, nil, fmt.Errorf("%w: %s price %v at bar %d", ErrSkipped, field, ref, index)
	}
	price := decimal.NewFromFloat(ref)

	var (
		next ledger.State
		fill ledger.Fill
		err  error
	)
	switch side {
	case ledger.Buy:
		est := st.Cash.Mul(s.fraction()).Div(price)
		bps := s.model().SlippageBps(bars, index, side, est)
		next, fill, err = st.Buy(price, s.fraction(), s.FeeRate, bps)
	case ledger.Sell:
		bps := s.model().SlippageBps(bars, index, side, st.Pos)
		next, fill, err = st.Sell(price, s.FeeRate, bps)
	default:
		return st, nil, fmt.Errorf("sim: unknown side %q", side)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrNoSize) {
			return st, nil, fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		return st, nil, fmt.Errorf("sim: %s at bar %d: %w", side, index, err)
	}

	fill.Index = index
	fill.Time = bar.T
	return next, &fill, nil
}
