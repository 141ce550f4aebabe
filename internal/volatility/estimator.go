package volatility

import (
	"sync"
	"sync/atomic"
	"time"

	"volguard/internal/config"
	"volguard/internal/logging"
	"volguard/internal/types"

	"github.com/cinar/indicator"
)

// Estimate is a blended volatility snapshot for one instrument. Estimates are
// created wholesale on each refresh and never mutated in place; readers always
// observe a complete snapshot.
type Estimate struct {
	Symbol      string    `json:"symbol"`
	Historical  float64   `json:"historical"`
	EWMA        float64   `json:"ewma"`
	GARCH       float64   `json:"garch"`
	Parkinson   float64   `json:"parkinson"`
	GarmanKlass float64   `json:"garman_klass"`
	Blended     float64   `json:"blended"`
	ATR         float64   `json:"atr"` // average true range diagnostic, price units
	SampleSize  int       `json:"sample_size"`
	Reliable    bool      `json:"reliable"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Estimator maintains per-instrument rolling windows and publishes blended
// volatility estimates. Refresh runs on the slow cadence; Current is the
// lock-free fast-path read.
type Estimator struct {
	cfg config.VolatilityConfig
	log *logging.Logger

	mu      sync.RWMutex
	windows map[string]*Window
	current map[string]*atomic.Pointer[Estimate]
}

// NewEstimator creates a new volatility estimator
func NewEstimator(cfg config.VolatilityConfig, log *logging.Logger) *Estimator {
	// Set defaults
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 100
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 10
	}
	if cfg.PeriodsPerYear == 0 {
		cfg.PeriodsPerYear = 252
	}
	if cfg.EWMALambda == 0 {
		cfg.EWMALambda = 0.94
	}
	if cfg.GARCHOmega == 0 {
		cfg.GARCHOmega = 0.000002
	}
	if cfg.GARCHAlpha == 0 {
		cfg.GARCHAlpha = 0.09
	}
	if cfg.GARCHBeta == 0 {
		cfg.GARCHBeta = 0.89
	}
	if cfg.ATRPeriod == 0 {
		cfg.ATRPeriod = 14
	}
	zero := config.BlendWeights{}
	if cfg.Weights == zero {
		cfg.Weights = config.BlendWeights{
			Historical:  0.15,
			EWMA:        0.30,
			GARCH:       0.30,
			Parkinson:   0.10,
			GarmanKlass: 0.15,
		}
	}

	return &Estimator{
		cfg:     cfg,
		log:     log,
		windows: make(map[string]*Window),
		current: make(map[string]*atomic.Pointer[Estimate]),
	}
}

// Track registers an instrument, allocating its window and snapshot slot
func (e *Estimator) Track(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.windows[symbol]; !exists {
		e.windows[symbol] = NewWindow(e.cfg.WindowSize)
		e.current[symbol] = &atomic.Pointer[Estimate]{}
	}
}

// AddBar appends a bar to the instrument's window, tracking the instrument
// on first sight. Invalid bars are dropped.
func (e *Estimator) AddBar(bar types.PriceBar) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	window, exists := e.windows[bar.Symbol]
	if !exists {
		window = NewWindow(e.cfg.WindowSize)
		e.windows[bar.Symbol] = window
		e.current[bar.Symbol] = &atomic.Pointer[Estimate]{}
	}
	return window.Append(bar)
}

// AddBars appends multiple bars
func (e *Estimator) AddBars(bars []types.PriceBar) {
	for _, bar := range bars {
		e.AddBar(bar)
	}
}

// Refresh computes a fresh estimate over the instrument's current window and
// publishes it with a single atomic swap. A window below the sample floor
// still yields a snapshot, flagged unreliable, never an error.
func (e *Estimator) Refresh(symbol string) *Estimate {
	e.mu.RLock()
	window, exists := e.windows[symbol]
	var bars []types.PriceBar
	if exists {
		bars = window.Bars()
	}
	slot := e.current[symbol]
	e.mu.RUnlock()

	if !exists {
		e.Track(symbol)
		e.mu.RLock()
		slot = e.current[symbol]
		e.mu.RUnlock()
	}

	estimate := e.compute(symbol, bars)

	// Single whole-object replace; readers never see a partial snapshot
	slot.Store(estimate)

	if e.log != nil {
		e.log.LogEstimate(symbol, estimate.Blended, estimate.SampleSize, estimate.Reliable)
	}

	return estimate
}

// Current returns the latest published estimate for the instrument, or nil
// when none has been published yet. Safe for concurrent fast-path use.
func (e *Estimator) Current(symbol string) *Estimate {
	e.mu.RLock()
	slot, exists := e.current[symbol]
	e.mu.RUnlock()

	if !exists {
		return nil
	}
	return slot.Load()
}

// Symbols returns the list of tracked instruments
func (e *Estimator) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	symbols := make([]string, 0, len(e.windows))
	for symbol := range e.windows {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// compute builds a complete estimate from the given bars
func (e *Estimator) compute(symbol string, bars []types.PriceBar) *Estimate {
	returns := logReturns(bars)

	estimate := &Estimate{
		Symbol:     symbol,
		SampleSize: len(bars),
		Reliable:   len(bars) >= e.cfg.MinSamples,
		ComputedAt: time.Now().UTC(),
	}

	estimate.Historical = historicalVolatility(returns, e.cfg.PeriodsPerYear)
	estimate.EWMA = ewmaVolatility(returns, e.cfg.EWMALambda, e.cfg.PeriodsPerYear)
	estimate.GARCH = garchVolatility(returns, e.cfg.GARCHOmega, e.cfg.GARCHAlpha, e.cfg.GARCHBeta, e.cfg.PeriodsPerYear)
	estimate.Parkinson = parkinsonVolatility(bars, e.cfg.PeriodsPerYear)
	estimate.GarmanKlass = garmanKlassVolatility(bars, e.cfg.PeriodsPerYear)
	estimate.Blended = e.blend(estimate)
	estimate.ATR = e.averageTrueRange(bars)

	return estimate
}

// blend combines the individual estimators with the configured weights,
// renormalized over whichever estimators produced a valid (>0) figure
func (e *Estimator) blend(est *Estimate) float64 {
	components := []struct {
		value  float64
		weight float64
	}{
		{est.Historical, e.cfg.Weights.Historical},
		{est.EWMA, e.cfg.Weights.EWMA},
		{est.GARCH, e.cfg.Weights.GARCH},
		{est.Parkinson, e.cfg.Weights.Parkinson},
		{est.GarmanKlass, e.cfg.Weights.GarmanKlass},
	}

	weighted := 0.0
	totalWeight := 0.0
	for _, c := range components {
		if c.value > 0 && c.weight > 0 {
			weighted += c.value * c.weight
			totalWeight += c.weight
		}
	}

	if totalWeight == 0 {
		// All estimators degenerate: flat prices yield zero volatility
		return 0
	}
	return weighted / totalWeight
}

// averageTrueRange computes the ATR diagnostic over the window
func (e *Estimator) averageTrueRange(bars []types.PriceBar) float64 {
	if len(bars) <= e.cfg.ATRPeriod {
		return 0
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		highs[i] = bar.High
		lows[i] = bar.Low
		closes[i] = bar.Close
	}

	atrValues, _ := indicator.Atr(e.cfg.ATRPeriod, highs, lows, closes)
	if len(atrValues) == 0 {
		return 0
	}
	return atrValues[len(atrValues)-1]
}

// logReturns extracts close-to-close log returns from a bar slice
func logReturns(bars []types.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		returns = append(returns, bars[i].LogReturn(bars[i-1].Close))
	}
	return returns
}
