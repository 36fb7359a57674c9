package strategies

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/rustyeddy/btledger/ledger"
	"github.com/rustyeddy/btledger/market"
)

// Scripted emits a fixed signal at given bar indexes and holds elsewhere.
type Scripted struct {
	Base
	script map[int]Signal
}

func NewScripted(script map[int]Signal) *Scripted {
	cp := make(map[int]Signal, len(script))
	for k, v := range script {
		cp[k] = v
	}
	return &Scripted{script: cp}
}

func (*Scripted) Name() string { return "scripted" }

func (s *Scripted) OnBar(_ market.Bar, index int, _ *ledger.Position) Signal {
	return s.script[index]
}

// ParseScript reads "index:signal" pairs separated by commas, for example
// "1:buy,5:sell".
func ParseScript(s string) (map[int]Signal, error) {
	out := map[int]Signal{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, sig, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("script entry %q: want index:signal", part)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 1 {
			return nil, fmt.Errorf("script entry %q: bad index", part)
		}
		v, err := ParseSignal(sig)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", part, err)
		}
		out[i] = v
	}
	return out, nil
}

// Random flips a coin on every bar and, on heads, asks to flip the position.
// Its draws come from the run's seeded generator, so a run is replayable.
type Random struct {
	Base
	r *rand.Rand
}

func NewRandom(r *rand.Rand) *Random { return &Random{r: r} }

func (*Random) Name() string { return "random" }

func (s *Random) OnBar(_ market.Bar, _ int, pos *ledger.Position) Signal {
	if s.r.Intn(2) == 0 {
		return Hold
	}
	if pos == nil {
		return Buy
	}
	return Sell
}
