// Package indicators holds streaming technical indicators over bar prices.
package indicators

import (
	"fmt"
	"math"
)

// EMA is a streaming Exponential Moving Average.
//
// It seeds with the first value and is Ready once period values have been
// seen. Non-finite inputs are ignored.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64

	name string
}

func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicators: EMA period must be > 0, got %d", period)
	}
	return &EMA{
		n:     period,
		alpha: 2.0 / float64(period+1),
		name:  fmt.Sprintf("EMA(%d)", period),
	}, nil
}

func (e *EMA) Name() string   { return e.name }
func (e *EMA) Warmup() int    { return e.n }
func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1.0-e.alpha)*e.value
}
