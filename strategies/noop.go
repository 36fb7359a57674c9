package strategies

import (
	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
)

// Noop never trades.
type Noop struct{ Base }

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(market.Bar, int, *ledger.Position) Signal { return Hold }

// BuyAndHold buys on the first bar it sees while flat and then holds. It's
// the baseline every other strategy is compared to.
type BuyAndHold struct {
	Base
	bought bool
}

func (*BuyAndHold) Name() string { return "buy-and-hold" }

func (s *BuyAndHold) OnBar(_ market.Bar, _ int, pos *ledger.Position) Signal {
	if s.bought || pos != nil {
		return Hold
	}
	s.bought = true
	return Buy
}
