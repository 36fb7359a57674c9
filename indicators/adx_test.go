package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func feedUptrend(adx *ADX, bars int, start, step, halfRange float64) {
	p := start
	for i := 0; i < bars; i++ {
		o, c := p, p+step
		adx.Update(c+halfRange, o-halfRange, c)
		p = c
	}
}

func TestADX_WarmupAndReady(t *testing.T) {
	adx, err := NewADX(5)
	require.NoError(t, err)
	require.Equal(t, 10, adx.Warmup())
	require.Equal(t, "ADX(5)", adx.Name())

	feedUptrend(adx, 9, 100, 1, 0.5)
	require.False(t, adx.Ready())

	feedUptrend(adx, 1, 109, 1, 0.5)
	require.True(t, adx.Ready())

	adx.Reset()
	require.False(t, adx.Ready())
	require.Zero(t, adx.Value())
}

func TestADX_FlatMarketIsZero(t *testing.T) {
	adx, err := NewADX(14)
	require.NoError(t, err)

	for i := 0; i < 3*14; i++ {
		adx.Update(1.2345, 1.2345, 1.2345)
	}
	require.True(t, adx.Ready())
	require.InDelta(t, 0.0, adx.PlusDI(), 1e-12)
	require.InDelta(t, 0.0, adx.MinusDI(), 1e-12)
	require.InDelta(t, 0.0, adx.Value(), 1e-12)
}

func TestADX_SteadyUptrend(t *testing.T) {
	adx, err := NewADX(14)
	require.NoError(t, err)

	feedUptrend(adx, 3*14, 100, 1, 0.5)
	require.True(t, adx.Ready())
	require.Greater(t, adx.PlusDI(), adx.MinusDI())
	require.InDelta(t, 100.0, adx.Value(), 1e-9)
}

func TestADX_IgnoresNonFinite(t *testing.T) {
	adx, err := NewADX(2)
	require.NoError(t, err)

	adx.Update(math.NaN(), 1, 1)
	adx.Update(2, 1, math.Inf(1))
	require.False(t, adx.hasPrev)
}

func TestNewADX_RejectsBadPeriod(t *testing.T) {
	_, err := NewADX(0)
	require.Error(t, err)
}
