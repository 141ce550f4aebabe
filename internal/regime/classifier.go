package regime

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"volguard/internal/config"
	"volguard/internal/data"
	"volguard/internal/logging"
	"volguard/internal/volatility"

	"github.com/cinar/indicator"
)

// Regime is a discrete bucket describing how volatile an instrument currently
// is relative to its own trailing history
type Regime string

const (
	RegimeLow    Regime = "low"
	RegimeNormal Regime = "normal"
	RegimeHigh   Regime = "high"
	RegimeSpike  Regime = "spike"
)

// rank orders regimes from calmest to most volatile
func (r Regime) rank() int {
	switch r {
	case RegimeLow:
		return 0
	case RegimeNormal:
		return 1
	case RegimeHigh:
		return 2
	case RegimeSpike:
		return 3
	}
	return 1
}

// State is the current regime classification of an instrument. States are
// published wholesale; thresholds are always strictly increasing.
type State struct {
	Symbol          string    `json:"symbol"`
	Regime          Regime    `json:"regime"`
	LowThreshold    float64   `json:"low_threshold"`    // 25th percentile
	NormalThreshold float64   `json:"normal_threshold"` // 75th percentile
	HighThreshold   float64   `json:"high_threshold"`   // 95th percentile
	EnteredAt       time.Time `json:"entered_at"`
	DaysInRegime    int       `json:"days_in_regime"`
	Transitioning   bool      `json:"transitioning"` // trend projected to cross into the next regime
	ComputedAt      time.Time `json:"computed_at"`
}

// TransitionRecord is one historical regime change. Records are append-only;
// the engine never mutates or deletes them.
type TransitionRecord struct {
	Symbol            string    `json:"symbol"`
	FromRegime        Regime    `json:"from_regime"`
	ToRegime          Regime    `json:"to_regime"`
	TriggerVolatility float64   `json:"trigger_volatility"`
	Timestamp         time.Time `json:"timestamp"`
	Anticipated       bool      `json:"anticipated"`
}

// Classifier maintains a per-instrument regime state machine over blended
// volatility estimates. Classify runs on the slow cadence alongside the
// estimator; Current is the lock-free fast-path read.
type Classifier struct {
	cfg     config.RegimeConfig
	log     *logging.Logger
	history *data.SeriesStore

	mu          sync.RWMutex
	current     map[string]*atomic.Pointer[State]
	transitions []TransitionRecord
}

// NewClassifier creates a new regime classifier
func NewClassifier(cfg config.RegimeConfig, log *logging.Logger) *Classifier {
	// Set defaults
	if cfg.HistorySize == 0 {
		cfg.HistorySize = 252
	}
	if cfg.MinThresholdSamples == 0 {
		cfg.MinThresholdSamples = 20
	}
	if cfg.SeedLowThreshold == 0 {
		cfg.SeedLowThreshold = 0.08
	}
	if cfg.SeedNormalThreshold == 0 {
		cfg.SeedNormalThreshold = 0.15
	}
	if cfg.SeedHighThreshold == 0 {
		cfg.SeedHighThreshold = 0.25
	}
	if cfg.ShortTrendWindow == 0 {
		cfg.ShortTrendWindow = 5
	}
	if cfg.LongTrendWindow == 0 {
		cfg.LongTrendWindow = 20
	}
	if cfg.AnticipationHorizon == 0 {
		cfg.AnticipationHorizon = 5
	}
	if cfg.MaxTransitionLog == 0 {
		cfg.MaxTransitionLog = 500
	}

	return &Classifier{
		cfg:     cfg,
		log:     log,
		history: data.NewSeriesStore(cfg.HistorySize),
		current: make(map[string]*atomic.Pointer[State]),
	}
}

// Classify buckets the estimate's blended volatility against the instrument's
// trailing percentile thresholds, records any transition, and publishes the
// new state atomically. Unreliable estimates update history but keep the
// previous regime.
func (c *Classifier) Classify(estimate *volatility.Estimate) *State {
	if estimate == nil {
		return nil
	}
	symbol := estimate.Symbol

	// Anticipation uses the history as it stood before this sample
	anticipated, transitioning := c.anticipation(symbol, estimate.Blended)

	c.history.Append(symbol, estimate.Blended)

	low, normal, high := c.thresholds(symbol)
	now := time.Now().UTC()

	slot := c.slot(symbol)
	prev := slot.Load()

	bucket := bucketFor(estimate.Blended, low, normal, high)
	if !estimate.Reliable && prev != nil {
		// Too few samples to trust; hold the prior regime under fresh thresholds
		bucket = prev.Regime
	}

	state := &State{
		Symbol:          symbol,
		Regime:          bucket,
		LowThreshold:    low,
		NormalThreshold: normal,
		HighThreshold:   high,
		EnteredAt:       now,
		Transitioning:   transitioning,
		ComputedAt:      now,
	}

	if prev != nil && prev.Regime == bucket {
		state.EnteredAt = prev.EnteredAt
	}
	state.DaysInRegime = int(now.Sub(state.EnteredAt).Hours() / 24)

	if prev != nil && prev.Regime != bucket {
		c.recordTransition(TransitionRecord{
			Symbol:            symbol,
			FromRegime:        prev.Regime,
			ToRegime:          bucket,
			TriggerVolatility: estimate.Blended,
			Timestamp:         now,
			Anticipated:       anticipated,
		})
	}

	slot.Store(state)
	return state
}

// Current returns the latest published state for the instrument, or nil when
// it has never been classified. Safe for concurrent fast-path use.
func (c *Classifier) Current(symbol string) *State {
	c.mu.RLock()
	slot, exists := c.current[symbol]
	c.mu.RUnlock()

	if !exists {
		return nil
	}
	return slot.Load()
}

// Transitions returns a copy of the transition log for the instrument,
// oldest first. An empty symbol returns the full log.
func (c *Classifier) Transitions(symbol string) []TransitionRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TransitionRecord, 0, len(c.transitions))
	for _, record := range c.transitions {
		if symbol == "" || record.Symbol == symbol {
			out = append(out, record)
		}
	}
	return out
}

// slot returns (allocating if needed) the atomic state slot for a symbol
func (c *Classifier) slot(symbol string) *atomic.Pointer[State] {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, exists := c.current[symbol]
	if !exists {
		slot = &atomic.Pointer[State]{}
		c.current[symbol] = slot
	}
	return slot
}

// recordTransition appends to the bounded transition log
func (c *Classifier) recordTransition(record TransitionRecord) {
	c.mu.Lock()
	c.transitions = append(c.transitions, record)
	if len(c.transitions) > c.cfg.MaxTransitionLog {
		c.transitions = c.transitions[len(c.transitions)-c.cfg.MaxTransitionLog:]
	}
	c.mu.Unlock()

	if c.log != nil {
		c.log.LogRegimeTransition(record.Symbol, string(record.FromRegime), string(record.ToRegime),
			record.TriggerVolatility, record.Anticipated)
	}
}

// thresholds returns the strictly increasing 25/75/95 percentile thresholds
// of the trailing volatility history, falling back to configured seeds until
// enough samples exist
func (c *Classifier) thresholds(symbol string) (low, normal, high float64) {
	history := c.history.Values(symbol)
	if len(history) < c.cfg.MinThresholdSamples {
		return c.cfg.SeedLowThreshold, c.cfg.SeedNormalThreshold, c.cfg.SeedHighThreshold
	}

	sorted := make([]float64, len(history))
	copy(sorted, history)
	sort.Float64s(sorted)

	low = percentile(sorted, 0.25)
	normal = percentile(sorted, 0.75)
	high = percentile(sorted, 0.95)

	// Degenerate histories collapse the percentiles; keep strict ordering
	const eps = 1e-9
	if normal <= low {
		normal = low + eps + low*1e-6
	}
	if high <= normal {
		high = normal + eps + normal*1e-6
	}
	return low, normal, high
}

// anticipation reports whether the short-window volatility trend was already
// moving toward the next threshold and projected to cross it within the
// configured horizon. The second return feeds State.Transitioning.
func (c *Classifier) anticipation(symbol string, blended float64) (anticipated, transitioning bool) {
	history := c.history.Values(symbol)
	if len(history) < c.cfg.LongTrendWindow {
		return false, false
	}

	shortSMA := indicator.Sma(c.cfg.ShortTrendWindow, history)
	longSMA := indicator.Sma(c.cfg.LongTrendWindow, history)
	short := shortSMA[len(shortSMA)-1]
	long := longSMA[len(longSMA)-1]

	// Per-sample drift approximated from the SMA spread
	drift := (short - long) / float64(c.cfg.LongTrendWindow-c.cfg.ShortTrendWindow)
	if drift == 0 {
		return false, false
	}
	projected := short + drift*float64(c.cfg.AnticipationHorizon)

	low, normal, high := c.thresholds(symbol)
	state := c.Current(symbol)
	regime := RegimeNormal
	if state != nil {
		regime = state.Regime
	}

	// Boundary in the direction the trend is moving
	var boundary float64
	var crossed bool
	if drift > 0 {
		switch regime {
		case RegimeLow:
			boundary = low
		case RegimeNormal:
			boundary = normal
		case RegimeHigh:
			boundary = high
		default:
			return false, false // nothing above Spike
		}
		crossed = projected > boundary && short <= boundary
	} else {
		switch regime {
		case RegimeSpike:
			boundary = high
		case RegimeHigh:
			boundary = normal
		case RegimeNormal:
			boundary = low
		default:
			return false, false // nothing below Low
		}
		crossed = projected < boundary && short >= boundary
	}

	return crossed, crossed
}

// bucketFor assigns the regime bucket for a blended volatility figure
func bucketFor(blended, low, normal, high float64) Regime {
	switch {
	case blended >= high:
		return RegimeSpike
	case blended >= normal:
		return RegimeHigh
	case blended >= low:
		return RegimeNormal
	default:
		return RegimeLow
	}
}

// percentile returns the interpolated percentile of a sorted slice
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lower := int(pos)
	if lower >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
