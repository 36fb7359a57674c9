package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Fill is one executed signal at full precision.
type Fill struct {
	Index int       // bar index the fill happened on
	Time  time.Time // bar timestamp

	Side        Side
	RefPrice    decimal.Decimal // bar price before slippage
	Price       decimal.Decimal // slippage-adjusted fill price
	Size        decimal.Decimal
	Notional    decimal.Decimal // Price * Size
	Fee         decimal.Decimal
	SlippageBps decimal.Decimal
}
