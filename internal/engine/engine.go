package engine

import (
	"sync"
	"time"

	"volguard/internal/config"
	"volguard/internal/logging"
	"volguard/internal/metrics"
	"volguard/internal/portfolio"
	"volguard/internal/regime"
	"volguard/internal/risk"
	"volguard/internal/sizing"
	"volguard/internal/types"
	"volguard/internal/volatility"
)

// Engine owns the per-instrument registries and wires the volatility
// estimator, regime classifier, portfolio aggregator, risk scorer and sizing
// engine together. There is no package-level state: callers construct an
// Engine and inject it wherever scoring or sizing is needed.
//
// Two speeds, never blocking each other: RunCycle is the slow path that
// recomputes and atomically publishes snapshots; ScoreTrade and SizeTrade are
// the synchronous fast path that only read the latest published snapshots.
type Engine struct {
	cfg     *config.Config
	log     *logging.Logger
	rec     *metrics.Recorder

	estimator  *volatility.Estimator
	classifier *regime.Classifier
	aggregator *portfolio.Aggregator
	scorer     *risk.Scorer
	sizer      *sizing.Engine

	mu          sync.RWMutex
	constraints map[string]types.InstrumentConstraints
}

// New creates a fully wired engine. The metrics recorder may be nil.
func New(cfg *config.Config, log *logging.Logger, rec *metrics.Recorder) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var volLog, regimeLog, riskLog, sizingLog *logging.Logger
	if log != nil {
		volLog = log.Component("volatility")
		regimeLog = log.Component("regime")
		riskLog = log.Component("risk")
		sizingLog = log.Component("sizing")
	}

	e := &Engine{
		cfg:         cfg,
		log:         log,
		rec:         rec,
		estimator:   volatility.NewEstimator(cfg.Volatility, volLog),
		classifier:  regime.NewClassifier(cfg.Regime, regimeLog),
		aggregator:  portfolio.NewAggregator(cfg.Portfolio),
		scorer:      risk.NewScorer(cfg.Scoring, riskLog),
		sizer:       sizing.NewEngine(cfg.Sizing, sizingLog),
		constraints: make(map[string]types.InstrumentConstraints),
	}

	for _, symbol := range cfg.App.Symbols {
		e.estimator.Track(symbol)
	}
	return e
}

// Track registers an instrument for the slow cycle
func (e *Engine) Track(symbol string) {
	e.estimator.Track(symbol)
}

// SetConstraints registers the broker constraints for an instrument
func (e *Engine) SetConstraints(c types.InstrumentConstraints) {
	e.mu.Lock()
	e.constraints[c.Symbol] = c
	e.mu.Unlock()
}

func (e *Engine) constraintsFor(symbol string) types.InstrumentConstraints {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.constraints[symbol]
}

// AddBar feeds one bar into the instrument's rolling window. It does not
// trigger a recompute; estimates refresh on the slow cycle.
func (e *Engine) AddBar(bar types.PriceBar) bool {
	return e.estimator.AddBar(bar)
}

// AddBars feeds a batch of bars
func (e *Engine) AddBars(bars []types.PriceBar) {
	e.estimator.AddBars(bars)
}

// RefreshVolatility appends the given bars and refreshes the instrument's
// volatility estimate immediately
func (e *Engine) RefreshVolatility(symbol string, bars []types.PriceBar) *volatility.Estimate {
	e.estimator.AddBars(bars)
	estimate := e.estimator.Refresh(symbol)
	e.rec.RecordEstimate(symbol, estimate.Blended)
	return estimate
}

// ClassifyRegime classifies an estimate and publishes the resulting state
func (e *Engine) ClassifyRegime(symbol string, estimate *volatility.Estimate) *regime.State {
	before := len(e.classifier.Transitions(symbol))
	state := e.classifier.Classify(estimate)
	if state != nil && len(e.classifier.Transitions(symbol)) > before {
		e.rec.RecordTransition(symbol, string(state.Regime))
	}
	return state
}

// RunCycle executes one slow-path recompute: every tracked instrument's
// volatility estimate and regime state, then the portfolio snapshot. Each
// result is published with an atomic whole-object swap, so fast-path readers
// never observe a partially updated cycle.
func (e *Engine) RunCycle(positions []types.OpenPosition, equity float64) {
	start := time.Now()

	for _, symbol := range e.estimator.Symbols() {
		estimate := e.estimator.Refresh(symbol)
		e.rec.RecordEstimate(symbol, estimate.Blended)
		e.ClassifyRegime(symbol, estimate)
	}

	e.aggregator.Aggregate(positions, equity)

	e.rec.RecordCycle(time.Since(start).Seconds())
}

// ScoreTrade scores a position context against the latest published
// snapshots. Fast path: O(1), no window scans, no recomputation.
func (e *Engine) ScoreTrade(ctx *types.PositionContext) *risk.Assessment {
	var symbol string
	if ctx != nil {
		symbol = ctx.Symbol
	}

	assessment := e.scorer.Score(
		ctx,
		e.estimator.Current(symbol),
		e.classifier.Current(symbol),
		e.aggregator.Current(),
	)
	e.rec.RecordAssessment(string(assessment.RiskLevel))
	return assessment
}

// SizeTrade turns an assessment into a constraint-valid size recommendation.
// Fast path, same discipline as ScoreTrade.
func (e *Engine) SizeTrade(ctx *types.PositionContext, assessment *risk.Assessment) *sizing.Recommendation {
	var symbol string
	var equity float64
	if ctx != nil {
		symbol = ctx.Symbol
		equity = ctx.AccountEquity
	}

	rec := e.sizer.Size(sizing.Input{
		Context:     ctx,
		Assessment:  assessment,
		Constraints: e.constraintsFor(symbol),
		Equity:      equity,
		Volatility:  e.estimator.Current(symbol),
		Regime:      e.classifier.Current(symbol),
	})
	e.rec.RecordSizing(rec.Rejected)
	return rec
}

// CurrentEstimate returns the latest published volatility estimate
func (e *Engine) CurrentEstimate(symbol string) *volatility.Estimate {
	return e.estimator.Current(symbol)
}

// CurrentRegime returns the latest published regime state
func (e *Engine) CurrentRegime(symbol string) *regime.State {
	return e.classifier.Current(symbol)
}

// CurrentPortfolio returns the latest published portfolio snapshot
func (e *Engine) CurrentPortfolio() *portfolio.Snapshot {
	return e.aggregator.Current()
}

// Transitions returns the regime transition log for an instrument
func (e *Engine) Transitions(symbol string) []regime.TransitionRecord {
	return e.classifier.Transitions(symbol)
}
