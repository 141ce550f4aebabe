package sizing

import (
	"testing"
	"time"

	"volguard/internal/config"
	"volguard/internal/regime"
	"volguard/internal/risk"
	"volguard/internal/types"
	"volguard/internal/volatility"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizingContext(equity, entry, stop float64) *types.PositionContext {
	return &types.PositionContext{
		Symbol:        "EURUSD",
		Direction:     types.DirectionLong,
		RequestedSize: 1,
		EntryPrice:    entry,
		StopPrice:     stop,
		AccountEquity: equity,
		Timestamp:     time.Date(2026, 1, 13, 14, 0, 0, 0, time.UTC),
	}
}

func standardConstraints() types.InstrumentConstraints {
	return types.InstrumentConstraints{
		Symbol:       "EURUSD",
		MinSize:      0.01,
		MaxSize:      100,
		SizeStep:     0.01,
		PerUnitValue: 100,
	}
}

// baseInput yields a fixed-fractional size of exactly 2.0:
// 1% of 10000 equity = 100 risk, over a 0.5 stop at 100 per unit = 50
func baseInput() Input {
	return Input{
		Context:     sizingContext(10000, 2.0, 1.5),
		Constraints: standardConstraints(),
		Equity:      10000,
	}
}

func singleMethodEngine(method string) *Engine {
	return NewEngine(config.SizingConfig{CombineMode: "single", Method: method}, nil)
}

func TestFixedFractionalBaseline(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	rec := e.Size(baseInput())
	require.NotNil(t, rec)
	require.False(t, rec.Rejected, "reasons: %v", rec.Reasons)

	assert.InDelta(t, 2.0, rec.ClampedSize, 1e-9)
	assert.InDelta(t, 100, rec.DollarRisk, 1e-6)
	assert.InDelta(t, 0.01, rec.PercentRisk, 1e-9)
	assert.Len(t, rec.Candidates, 4)
}

func TestSizeRoundsDownToStep(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	// 100 risk over a 0.3 stop = 3.333... units
	in := baseInput()
	in.Context = sizingContext(10000, 2.0, 1.7)

	rec := e.Size(in)
	require.False(t, rec.Rejected)

	assert.InDelta(t, 3.33, rec.ClampedSize, 1e-9)
	assert.Less(t, rec.ClampedSize, rec.RawSize)
}

func TestSizeBelowMinimumIsRejectedNotSubstituted(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	in := baseInput()
	in.Constraints.MinSize = 5.0

	rec := e.Size(in)

	assert.True(t, rec.Rejected)
	assert.Zero(t, rec.ClampedSize)
	require.NotEmpty(t, rec.Reasons)
	assert.Contains(t, rec.Reasons[0], "below instrument minimum")
}

func TestSizeCappedAtInstrumentMaximum(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	in := baseInput()
	in.Constraints.MaxSize = 1.5

	rec := e.Size(in)
	require.False(t, rec.Rejected)

	assert.InDelta(t, 1.5, rec.ClampedSize, 1e-9)
	require.NotEmpty(t, rec.Reasons)
	assert.Contains(t, rec.Reasons[0], "capped at instrument maximum")
}

func TestSizeReducedToAvailableMargin(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	in := baseInput()
	in.Constraints.MarginPerUnit = 8000 // 2.0 units would need 16000 against 10000 equity

	rec := e.Size(in)
	require.False(t, rec.Rejected)

	assert.InDelta(t, 1.25, rec.ClampedSize, 1e-9)
	assert.InDelta(t, 10000, rec.MarginRequired, 1e-6)
	require.NotEmpty(t, rec.Reasons)
	assert.Contains(t, rec.Reasons[0], "available margin")
}

func TestKellySizingWithTrustedStats(t *testing.T) {
	e := singleMethodEngine("kelly_fraction")

	in := baseInput()
	in.Context.Stats = &types.TradeStats{
		SampleSize: 100,
		WinRate:    0.60,
		AvgWin:     150,
		AvgLoss:    100,
	}

	rec := e.Size(in)
	require.False(t, rec.Rejected)

	// Kelly fraction (1.5*0.6 - 0.4) / 1.5 = 1/3, quartered to 1/12 of
	// equity, over 50 per-unit risk
	assert.Equal(t, "kelly_fraction", rec.Method)
	assert.InDelta(t, 16.666, rec.RawSize, 0.01)
	assert.InDelta(t, 16.66, rec.ClampedSize, 1e-9)
}

func TestKellyRevertsOnUntrustedStats(t *testing.T) {
	tests := []struct {
		name  string
		stats *types.TradeStats
		note  string
	}{
		{"no stats", nil, "no trade statistics"},
		{"thin sample", &types.TradeStats{SampleSize: 10, WinRate: 0.6, AvgWin: 150, AvgLoss: 100}, "only 10 samples"},
		{"implausible win rate", &types.TradeStats{SampleSize: 100, WinRate: 0.95, AvgWin: 150, AvgLoss: 100}, "outside trusted band"},
		{"zero average loss", &types.TradeStats{SampleSize: 100, WinRate: 0.6, AvgWin: 150}, "degenerate payoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := singleMethodEngine("kelly_fraction")

			in := baseInput()
			in.Context.Stats = tt.stats

			rec := e.Size(in)
			require.False(t, rec.Rejected)

			// Reverts to the fixed-fractional figure, with the reason noted
			assert.InDelta(t, 2.0, rec.ClampedSize, 1e-9)
			var kelly Candidate
			for _, c := range rec.Candidates {
				if c.Method == MethodKellyFraction {
					kelly = c
				}
			}
			assert.Contains(t, kelly.Note, tt.note)
		})
	}
}

func TestKellyNegativeEdgeSizesZero(t *testing.T) {
	e := singleMethodEngine("kelly_fraction")

	in := baseInput()
	in.Context.Stats = &types.TradeStats{
		SampleSize: 100,
		WinRate:    0.30,
		AvgWin:     100,
		AvgLoss:    100,
	}

	rec := e.Size(in)

	assert.True(t, rec.Rejected)
	require.NotEmpty(t, rec.Reasons)
	assert.Contains(t, rec.Reasons[0], "computed size is zero")
}

func TestVolatilityTargetScalesAndClamps(t *testing.T) {
	tests := []struct {
		name    string
		blended float64
		want    float64 // expected multiple of the 2.0 base
	}{
		{"at target", 0.15, 2.0},
		{"double target halves", 0.30, 1.0},
		{"extreme vol clamps at min scale", 3.0, 0.2},
		{"near-zero vol clamps at max scale", 0.01, 8.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := singleMethodEngine("volatility_target")

			in := baseInput()
			in.Volatility = &volatility.Estimate{Symbol: "EURUSD", Blended: tt.blended, Reliable: true}

			rec := e.Size(in)
			require.False(t, rec.Rejected)
			assert.InDelta(t, tt.want, rec.ClampedSize, 1e-9)
		})
	}
}

func TestSingleMethodFallsBackWhenSkipped(t *testing.T) {
	e := singleMethodEngine("volatility_target")

	// No volatility estimate: the selected method is unavailable, so the
	// engine falls back to the conservative combination
	rec := e.Size(baseInput())
	require.False(t, rec.Rejected)
	assert.InDelta(t, 2.0, rec.ClampedSize, 1e-9)
}

func TestRegimeScaledFactors(t *testing.T) {
	tests := []struct {
		regime regime.Regime
		want   float64
	}{
		{regime.RegimeLow, 3.0},
		{regime.RegimeNormal, 2.0},
		{regime.RegimeHigh, 1.4},
		{regime.RegimeSpike, 0.8},
	}

	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			e := singleMethodEngine("regime_scaled")

			in := baseInput()
			in.Regime = &regime.State{Symbol: "EURUSD", Regime: tt.regime}

			rec := e.Size(in)
			require.False(t, rec.Rejected)
			assert.InDelta(t, tt.want, rec.ClampedSize, 1e-9)
		})
	}
}

func TestCombineModes(t *testing.T) {
	spike := baseInput()
	spike.Regime = &regime.State{Symbol: "EURUSD", Regime: regime.RegimeSpike}

	// Candidates: fixed 2.0, kelly 2.0 (reverted), regime 0.8; vol skipped
	conservative := NewEngine(config.SizingConfig{CombineMode: "conservative"}, nil).Size(spike)
	assert.InDelta(t, 0.8, conservative.ClampedSize, 1e-9)

	low := baseInput()
	low.Regime = &regime.State{Symbol: "EURUSD", Regime: regime.RegimeLow}

	// Candidates: fixed 2.0, kelly 2.0, regime 3.0; mean is 7/3, floored
	// to the 0.01 step
	average := NewEngine(config.SizingConfig{CombineMode: "average"}, nil).Size(low)
	assert.InDelta(t, 2.33, average.ClampedSize, 1e-9)
}

func TestRiskScoreAttenuatesSize(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	in := baseInput()
	in.Assessment = &risk.Assessment{
		Symbol:         "EURUSD",
		OverallScore:   0.75,
		RiskLevel:      risk.LevelCritical,
		TradingAllowed: true,
	}

	rec := e.Size(in)
	require.False(t, rec.Rejected)

	// Halfway from the 0.5 band to 1.0 shaves half of the maximum 50%
	assert.InDelta(t, 1.5, rec.ClampedSize, 1e-9)
}

func TestVetoedAssessmentRejectsSizing(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	in := baseInput()
	in.Assessment = &risk.Assessment{
		Symbol:         "EURUSD",
		OverallScore:   0.9,
		RiskLevel:      risk.LevelCritical,
		TradingAllowed: false,
	}

	rec := e.Size(in)

	assert.True(t, rec.Rejected)
	require.NotEmpty(t, rec.Reasons)
	assert.Contains(t, rec.Reasons[0], "trading not allowed")
	assert.Zero(t, rec.ClampedSize)
}

func TestInvalidInputRejections(t *testing.T) {
	e := NewEngine(config.SizingConfig{}, nil)

	noEquity := baseInput()
	noEquity.Equity = 0
	assert.True(t, e.Size(noEquity).Rejected)

	noStop := baseInput()
	noStop.Context.StopPrice = noStop.Context.EntryPrice
	assert.True(t, e.Size(noStop).Rejected)

	badConstraints := baseInput()
	badConstraints.Constraints = types.InstrumentConstraints{}
	assert.True(t, e.Size(badConstraints).Rejected)

	assert.True(t, e.Size(Input{Equity: 1000}).Rejected)
}
