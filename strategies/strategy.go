package strategies

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
)

// Strategy decides, bar by bar, whether to enter or leave the market.
//
// OnBar is called exactly once per bar in order, starting at index 1. pos is
// nil when the account is flat. Strategies are owned by a single run and
// never called concurrently.
type Strategy interface {
	Name() string
	Warmup(bars []market.Bar)
	OnBar(bar market.Bar, index int, pos *ledger.Position) Signal
}

// Base supplies a no-op Warmup. Embed it in strategies that need no
// preparation.
type Base struct{}

func (Base) Warmup([]market.Bar) {}

type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side maps an actionable signal to a fill side.
func (s Signal) Side() (ledger.Side, bool) {
	switch s {
	case Buy:
		return ledger.Buy, true
	case Sell:
		return ledger.Sell, true
	default:
		return "", false
	}
}

// ParseSignal accepts buy, sell or hold in any case.
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	case "hold", "":
		return Hold, nil
	}
	return Hold, fmt.Errorf("unknown signal %q", s)
}

// Params configures the bundled strategies. Fields a strategy does not use
// are ignored.
type Params struct {
	Fast   int
	Slow   int
	Script map[int]Signal

	// ema-cross-adx; zero takes DefaultADXPeriod and DefaultADXThreshold
	ADXPeriod    int
	ADXThreshold float64
}

var names = map[string]string{
	"noop":          "noop",
	"none":          "noop",
	"buy-and-hold":  "buy-and-hold",
	"buyhold":       "buy-and-hold",
	"open-once":     "buy-and-hold",
	"ema-cross":     "ema-cross",
	"emacross":      "ema-cross",
	"ema-cross-adx": "ema-cross-adx",
	"emacrossadx":   "ema-cross-adx",
	"scripted":      "scripted",
	"script":        "scripted",
	"random":        "random",
}

// Names lists the canonical strategy names.
func Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// ByName builds a bundled strategy. r is the run's seeded generator; only
// the random strategy uses it.
func ByName(name string, p Params, r *rand.Rand) (Strategy, error) {
	canon, ok := names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}

	switch canon {
	case "noop":
		return Noop{}, nil
	case "buy-and-hold":
		return &BuyAndHold{}, nil
	case "ema-cross":
		return NewEMACross(p.Fast, p.Slow)
	case "ema-cross-adx":
		return NewEMACrossADX(p.Fast, p.Slow, p.ADXPeriod, p.ADXThreshold)
	case "scripted":
		return NewScripted(p.Script), nil
	default:
		if r == nil {
			return nil, fmt.Errorf("strategy %q needs a seeded generator", canon)
		}
		return NewRandom(r), nil
	}
}
