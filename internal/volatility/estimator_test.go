package volatility

import (
	"math"
	"testing"
	"time"

	"volguard/internal/config"
	"volguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBar(symbol string, day int, open, high, low, close float64) types.PriceBar {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	return types.NewPriceBar(symbol, ts, open, high, low, close)
}

// flatBars returns n identical bars with no intraday range
func flatBars(symbol string, n int, price float64) []types.PriceBar {
	bars := make([]types.PriceBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, makeBar(symbol, i, price, price, price, price))
	}
	return bars
}

// alternatingBars returns bars whose closes alternate up and down by the
// given log return, with a small intraday range around each close
func alternatingBars(symbol string, n int, r float64) []types.PriceBar {
	bars := make([]types.PriceBar, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%2 == 1 {
				price *= math.Exp(r)
			} else {
				price *= math.Exp(-r)
			}
		}
		bars = append(bars, makeBar(symbol, i, price, price*1.001, price*0.999, price))
	}
	return bars
}

func TestWindowEvictsOldestAtCapacity(t *testing.T) {
	w := NewWindow(3)

	for i := 0; i < 5; i++ {
		ok := w.Append(makeBar("EURUSD", i, 100, 101, 99, 100+float64(i)))
		assert.True(t, ok)
	}

	assert.Equal(t, 3, w.Len())
	bars := w.Bars()
	require.Len(t, bars, 3)
	assert.Equal(t, 102.0, bars[0].Close)
	assert.Equal(t, 104.0, bars[2].Close)
}

func TestWindowDropsInvalidBars(t *testing.T) {
	w := NewWindow(10)

	assert.False(t, w.Append(makeBar("EURUSD", 0, 100, 99, 101, 100)))  // high < low
	assert.False(t, w.Append(makeBar("EURUSD", 1, -1, 101, 99, 100)))   // non-positive open
	assert.False(t, w.Append(makeBar("EURUSD", 2, 100, 101, 99, 1000))) // close above high
	assert.Equal(t, 0, w.Len())

	assert.True(t, w.Append(makeBar("EURUSD", 3, 100, 101, 99, 100)))
	assert.Equal(t, 1, w.Len())
}

func TestHistoricalVolatilityKnownValue(t *testing.T) {
	// 21 bars give 20 alternating returns of +-r with zero mean
	r := 0.01
	bars := alternatingBars("EURUSD", 21, r)
	returns := logReturns(bars)
	require.Len(t, returns, 20)

	got := historicalVolatility(returns, 252)

	n := float64(len(returns))
	want := math.Sqrt(n/(n-1)) * r * math.Sqrt(252)
	assert.InDelta(t, want, got, 1e-9)
}

func TestParkinsonVolatilityKnownValue(t *testing.T) {
	bars := make([]types.PriceBar, 0, 20)
	for i := 0; i < 20; i++ {
		bars = append(bars, makeBar("EURUSD", i, 100.5, 101, 100, 100.5))
	}

	got := parkinsonVolatility(bars, 252)

	lr := math.Log(101.0 / 100.0)
	want := math.Sqrt(lr * lr / (4 * math.Ln2) * 252)
	assert.InDelta(t, want, got, 1e-9)
}

func TestEstimatorsDegenerateInputs(t *testing.T) {
	assert.Zero(t, historicalVolatility(nil, 252))
	assert.Zero(t, historicalVolatility([]float64{0.01}, 252))
	assert.Zero(t, ewmaVolatility(nil, 0.94, 252))
	assert.Zero(t, garchVolatility(nil, 0.000002, 0.09, 0.89, 252))
	assert.Zero(t, garchVolatility([]float64{0.01}, 0.000002, 0.5, 0.6, 252)) // persistence >= 1
	assert.Zero(t, parkinsonVolatility(nil, 252))
	assert.Zero(t, garmanKlassVolatility(nil, 252))
}

func TestFlatPricesYieldZeroBlendedButReliable(t *testing.T) {
	est := NewEstimator(config.VolatilityConfig{MinSamples: 10}, nil)
	est.AddBars(flatBars("EURUSD", 30, 100))

	estimate := est.Refresh("EURUSD")
	require.NotNil(t, estimate)

	assert.Zero(t, estimate.Blended)
	assert.Zero(t, estimate.Historical)
	assert.Zero(t, estimate.EWMA)
	assert.Zero(t, estimate.GARCH)
	assert.Zero(t, estimate.Parkinson)
	assert.Zero(t, estimate.GarmanKlass)

	// Reliability tracks the sample count, not the estimate value
	assert.True(t, estimate.Reliable)
	assert.Equal(t, 30, estimate.SampleSize)
}

func TestBlendRenormalizesOverValidEstimators(t *testing.T) {
	est := NewEstimator(config.VolatilityConfig{}, nil)

	// Range estimators zero, return estimators populated: the blend must
	// renormalize over the surviving weights, not dilute toward zero
	snapshot := &Estimate{
		Historical: 0.20,
		EWMA:       0.20,
		GARCH:      0.20,
	}
	assert.InDelta(t, 0.20, est.blend(snapshot), 1e-12)

	// All five valid and equal: the blend is that value regardless of weights
	snapshot.Parkinson = 0.20
	snapshot.GarmanKlass = 0.20
	assert.InDelta(t, 0.20, est.blend(snapshot), 1e-12)

	// All degenerate
	assert.Zero(t, est.blend(&Estimate{}))
}

func TestRefreshPublishesSnapshotForCurrent(t *testing.T) {
	est := NewEstimator(config.VolatilityConfig{MinSamples: 5}, nil)

	assert.Nil(t, est.Current("EURUSD"))

	est.AddBars(alternatingBars("EURUSD", 40, 0.008))
	published := est.Refresh("EURUSD")

	current := est.Current("EURUSD")
	require.NotNil(t, current)
	assert.Same(t, published, current)
	assert.True(t, current.Reliable)
	assert.Greater(t, current.Blended, 0.0)
	assert.Greater(t, current.ATR, 0.0)
}

func TestShortWindowIsUnreliableNotError(t *testing.T) {
	est := NewEstimator(config.VolatilityConfig{MinSamples: 20}, nil)
	est.AddBars(alternatingBars("GBPUSD", 5, 0.01))

	estimate := est.Refresh("GBPUSD")
	require.NotNil(t, estimate)
	assert.False(t, estimate.Reliable)
	assert.Equal(t, 5, estimate.SampleSize)
}

func TestRefreshUnknownSymbolTracksIt(t *testing.T) {
	est := NewEstimator(config.VolatilityConfig{}, nil)

	estimate := est.Refresh("USDJPY")
	require.NotNil(t, estimate)
	assert.Zero(t, estimate.SampleSize)
	assert.False(t, estimate.Reliable)
	assert.Contains(t, est.Symbols(), "USDJPY")
}
