package indicators

import (
	"fmt"
	"math"
)

// ADX is Wilder's Average Directional Index over high/low/close.
//
// The first N periods (deltas between bars) seed the smoothed true range and
// directional movement; the next N DX values seed the ADX itself, so it is
// Ready after about 2N bars.
type ADX struct {
	n    int
	name string

	prevH, prevL, prevC float64
	hasPrev             bool
	periods             int
	ready               bool

	adx     float64
	plusDI  float64
	minusDI float64
	lastDX  float64

	// Wilder-smoothed sums; plain sums until periods reaches n
	smTR      float64
	smPlusDM  float64
	smMinusDM float64

	dxSum   float64
	dxCount int
}

func NewADX(period int) (*ADX, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicators: ADX period must be > 0, got %d", period)
	}
	return &ADX{n: period, name: fmt.Sprintf("ADX(%d)", period)}, nil
}

func (a *ADX) Name() string     { return a.name }
func (a *ADX) Warmup() int      { return 2 * a.n }
func (a *ADX) Ready() bool      { return a.ready }
func (a *ADX) Value() float64   { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.lastDX }

func (a *ADX) Reset() {
	*a = ADX{n: a.n, name: a.name}
}

// Update consumes the next bar. Bars with a non-finite high, low or close
// are ignored.
func (a *ADX) Update(h, l, c float64) {
	for _, v := range [...]float64{h, l, c} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
	}
	if !a.hasPrev {
		a.prevH, a.prevL, a.prevC = h, l, c
		a.hasPrev = true
		return
	}

	tr := math.Max(h-l, math.Max(math.Abs(h-a.prevC), math.Abs(l-a.prevC)))

	upMove := h - a.prevH
	downMove := a.prevL - l
	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	a.prevH, a.prevL, a.prevC = h, l, c
	a.periods++

	if a.periods <= a.n {
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		if a.periods == a.n {
			a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
			a.lastDX = dx(a.plusDI, a.minusDI)
			a.dxSum = a.lastDX
			a.dxCount = 1
		}
		return
	}

	nf := float64(a.n)
	a.smTR = a.smTR - a.smTR/nf + tr
	a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
	a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM

	a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
	a.lastDX = dx(a.plusDI, a.minusDI)

	if !a.ready {
		a.dxSum += a.lastDX
		a.dxCount++
		if a.dxCount >= a.n {
			a.adx = a.dxSum / nf
			a.ready = true
		}
		return
	}
	a.adx = (a.adx*(nf-1) + a.lastDX) / nf
}

func di(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
