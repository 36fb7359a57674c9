// Package ledger holds the cash, position and average price of a simulated
// long-only account.
//
// All quantities are exact decimals. Nothing is rounded here: rounding is a
// presentation concern handled when fills are journaled or printed.
//
// The account is either FLAT (Pos == 0) or LONG (Pos > 0). Buy is legal only
// from FLAT and deploys a fraction of the cash; Sell is legal only from LONG
// and liquidates the whole position. Cash and Pos never go negative.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// sizePlaces bounds the precision of a computed trade size. The size is
// truncated (never rounded up) so a buy can never spend more than its budget.
const sizePlaces = 18

var (
	ErrNotFlat          = errors.New("ledger: buy requires a flat position")
	ErrNotLong          = errors.New("ledger: sell requires an open position")
	ErrBadPrice         = errors.New("ledger: price must be positive")
	ErrBadFraction      = errors.New("ledger: cash fraction must be in (0, 1]")
	ErrBadCost          = errors.New("ledger: fee rate must be in [0, 1) and slippage in [0, 10000) bps")
	ErrNoSize           = errors.New("ledger: computed trade size is not positive")
	ErrInsufficientCash = errors.New("ledger: fill would leave negative cash")
)

var one = decimal.NewFromInt(1)

// State is the account. The zero value is a flat account with no cash.
type State struct {
	Cash     decimal.Decimal
	Pos      decimal.Decimal
	AvgPrice decimal.Decimal
}

// New returns a flat account holding cash.
func New(cash decimal.Decimal) State {
	return State{Cash: cash}
}

// Flat reports whether there is no open position.
func (s State) Flat() bool { return s.Pos.Sign() <= 0 }

// Position is a read-only view of the open position.
type Position struct {
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// Position returns the open position, or nil when flat.
func (s State) Position() *Position {
	if s.Flat() {
		return nil
	}
	return &Position{Size: s.Pos, EntryPrice: s.AvgPrice}
}

// Equity marks the account to market at close. It is computed on every call.
func (s State) Equity(close decimal.Decimal) decimal.Decimal {
	return s.Cash.Add(s.Pos.Mul(close))
}

func checkCosts(feeRate, slippageBps decimal.Decimal) error {
	if feeRate.Sign() < 0 || feeRate.GreaterThanOrEqual(one) {
		return ErrBadCost
	}
	if slippageBps.Sign() < 0 || slippageBps.GreaterThanOrEqual(decimal.NewFromInt(10_000)) {
		return ErrBadCost
	}
	return nil
}

// Buy opens a position worth fraction of the cash at price adjusted upward by
// slippageBps. The fee (feeRate of the notional) is paid out of the same
// budget, so notional + fee never exceeds cash*fraction.
//
// On any error the receiver is returned unchanged.
func (s State) Buy(price, fraction, feeRate, slippageBps decimal.Decimal) (State, Fill, error) {
	if !s.Flat() {
		return s, Fill{}, ErrNotFlat
	}
	if price.Sign() <= 0 {
		return s, Fill{}, ErrBadPrice
	}
	if fraction.Sign() <= 0 || fraction.GreaterThan(one) {
		return s, Fill{}, ErrBadFraction
	}
	if err := checkCosts(feeRate, slippageBps); err != nil {
		return s, Fill{}, err
	}

	fillPrice := price.Mul(one.Add(slippageBps.Shift(-4)))
	budget := s.Cash.Mul(fraction)
	unitCost := fillPrice.Mul(one.Add(feeRate))

	size, _ := budget.QuoRem(unitCost, sizePlaces)
	if size.Sign() <= 0 {
		return s, Fill{}, ErrNoSize
	}

	notional := size.Mul(fillPrice)
	fee := notional.Mul(feeRate)
	cash := s.Cash.Sub(notional).Sub(fee)
	if cash.Sign() < 0 {
		return s, Fill{}, ErrInsufficientCash
	}

	next := State{Cash: cash, Pos: size, AvgPrice: fillPrice}
	return next, Fill{
		Side:        Buy,
		RefPrice:    price,
		Price:       fillPrice,
		Size:        size,
		Notional:    notional,
		Fee:         fee,
		SlippageBps: slippageBps,
	}, nil
}

// Sell liquidates the whole position at price adjusted downward by
// slippageBps and credits the proceeds net of the fee.
//
// On any error the receiver is returned unchanged.
func (s State) Sell(price, feeRate, slippageBps decimal.Decimal) (State, Fill, error) {
	if s.Flat() {
		return s, Fill{}, ErrNotLong
	}
	if price.Sign() <= 0 {
		return s, Fill{}, ErrBadPrice
	}
	if err := checkCosts(feeRate, slippageBps); err != nil {
		return s, Fill{}, err
	}

	fillPrice := price.Mul(one.Sub(slippageBps.Shift(-4)))
	notional := s.Pos.Mul(fillPrice)
	fee := notional.Mul(feeRate)
	cash := s.Cash.Add(notional).Sub(fee)
	if cash.Sign() < 0 {
		return s, Fill{}, ErrInsufficientCash
	}

	size := s.Pos
	next := State{Cash: cash, Pos: decimal.Zero, AvgPrice: decimal.Zero}
	return next, Fill{
		Side:        Sell,
		RefPrice:    price,
		Price:       fillPrice,
		Size:        size,
		Notional:    notional,
		Fee:         fee,
		SlippageBps: slippageBps,
	}, nil
}
