package risk

import (
	"fmt"
	"time"

	"volguard/internal/config"
	"volguard/internal/logging"
	"volguard/internal/portfolio"
	"volguard/internal/regime"
	"volguard/internal/types"
	"volguard/internal/volatility"
)

// Level buckets the overall score into a coarse risk grade
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// neutralScore stands in for a factor whose inputs are missing or unreliable
const neutralScore = 0.5

// Assessment is the result of scoring one position context. It is returned
// to the caller, immutable, and not retained by the engine.
type Assessment struct {
	Symbol         string        `json:"symbol"`
	OverallScore   float64       `json:"overall_score"` // in [0, 1]
	RiskLevel      Level         `json:"risk_level"`
	Factors        []FactorScore `json:"factors,omitempty"`
	TradingAllowed bool          `json:"trading_allowed"`
	Warnings       []string      `json:"warnings,omitempty"`
	ComputedAt     time.Time     `json:"computed_at"`
}

// Scorer combines the published snapshots with a position context into a
// bounded composite risk assessment. Score is on the trade-decision hot path:
// it only reads snapshots and performs bounded arithmetic, never a recompute.
type Scorer struct {
	cfg config.ScoringConfig
	log *logging.Logger
}

// NewScorer creates a new risk scorer
func NewScorer(cfg config.ScoringConfig, log *logging.Logger) *Scorer {
	// Set defaults
	zero := config.FactorWeights{}
	if cfg.Weights == zero {
		cfg.Weights = config.FactorWeights{
			SizeToEquity:    0.25,
			StopVolatility:  0.20,
			Leverage:        0.15,
			Session:         0.10,
			VolatilityRatio: 0.15,
			Correlation:     0.10,
			Calendar:        0.05,
		}
	}
	if cfg.MediumThreshold == 0 {
		cfg.MediumThreshold = 0.3
	}
	if cfg.HighThreshold == 0 {
		cfg.HighThreshold = 0.5
	}
	if cfg.CriticalThreshold == 0 {
		cfg.CriticalThreshold = 0.7
	}
	if cfg.MaxSizeToEquity == 0 {
		cfg.MaxSizeToEquity = 0.5
	}
	if cfg.MaxStopVolRatio == 0 {
		cfg.MaxStopVolRatio = 5.0
	}
	if cfg.MaxLeverage == 0 {
		cfg.MaxLeverage = 10.0
	}
	if cfg.MaxVolRatio == 0 {
		cfg.MaxVolRatio = 4.0
	}

	return &Scorer{cfg: cfg, log: log}
}

// Score computes the composite risk assessment for one position context using
// the already-published snapshots. Invalid input rejects at the boundary with
// a specific reason and no partial computation.
func (s *Scorer) Score(
	ctx *types.PositionContext,
	vol *volatility.Estimate,
	state *regime.State,
	snapshot *portfolio.Snapshot,
) *Assessment {
	if reason := validateContext(ctx); reason != "" {
		return s.rejected(ctx, reason)
	}

	var warnings []string
	hardBreach := false

	// 1. Position size relative to equity
	sizeRaw := ctx.Notional() / ctx.AccountEquity
	sizeScore := clamp01(sizeRaw / s.cfg.MaxSizeToEquity)
	if sizeRaw > s.cfg.MaxSizeToEquity {
		warnings = append(warnings, fmt.Sprintf("position notional is %.0f%% of equity, above the %.0f%% cap",
			sizeRaw*100, s.cfg.MaxSizeToEquity*100))
		hardBreach = true
	}

	// 2. Stop distance relative to current volatility
	stopRaw, stopScore := s.stopVolatility(ctx, vol)
	if vol != nil && !vol.Reliable {
		warnings = append(warnings, "volatility estimate below sample floor, treated as neutral")
	}

	// 3. Effective leverage including the candidate trade
	levRaw := sizeRaw
	if snapshot != nil && ctx.AccountEquity > 0 {
		levRaw = (snapshot.TotalExposure + ctx.Notional()) / ctx.AccountEquity
	}
	levScore := clamp01(levRaw / s.cfg.MaxLeverage)
	if levRaw > s.cfg.MaxLeverage {
		warnings = append(warnings, fmt.Sprintf("effective leverage %.1fx exceeds the %.1fx limit",
			levRaw, s.cfg.MaxLeverage))
		hardBreach = true
	}

	// 4. Session liquidity risk from time of day
	sessionRaw, sessionScore := sessionRisk(ctx.Timestamp)

	// 5. Current volatility against the instrument's normal regime level
	volRaw, volScore := s.volatilityRatio(vol, state)

	// 6. Correlation and concentration from the portfolio snapshot
	corrRaw, corrScore := correlationRisk(snapshot)

	// 7. Calendar risk
	calRaw, calScore := calendarRisk(ctx.Timestamp)

	w := s.cfg.Weights
	factors := []FactorScore{
		{Kind: FactorSizeToEquity, Name: FactorSizeToEquity.String(), Raw: sizeRaw, Score: sizeScore, Weight: w.SizeToEquity},
		{Kind: FactorStopVolatility, Name: FactorStopVolatility.String(), Raw: stopRaw, Score: stopScore, Weight: w.StopVolatility},
		{Kind: FactorLeverage, Name: FactorLeverage.String(), Raw: levRaw, Score: levScore, Weight: w.Leverage},
		{Kind: FactorSession, Name: FactorSession.String(), Raw: sessionRaw, Score: sessionScore, Weight: w.Session},
		{Kind: FactorVolatilityRatio, Name: FactorVolatilityRatio.String(), Raw: volRaw, Score: volScore, Weight: w.VolatilityRatio},
		{Kind: FactorCorrelation, Name: FactorCorrelation.String(), Raw: corrRaw, Score: corrScore, Weight: w.Correlation},
		{Kind: FactorCalendar, Name: FactorCalendar.String(), Raw: calRaw, Score: calScore, Weight: w.Calendar},
	}

	overall := 0.0
	for _, f := range factors {
		overall += f.Score * f.Weight
	}
	overall = clamp01(overall)

	level := s.levelFor(overall)
	allowed := level != LevelCritical && !hardBreach

	if level == LevelCritical {
		warnings = append(warnings, "overall risk score is critical")
	}

	assessment := &Assessment{
		Symbol:         ctx.Symbol,
		OverallScore:   overall,
		RiskLevel:      level,
		Factors:        factors,
		TradingAllowed: allowed,
		Warnings:       warnings,
		ComputedAt:     time.Now().UTC(),
	}

	if s.log != nil {
		s.log.LogAssessment(ctx.Symbol, overall, string(level), allowed)
	}
	return assessment
}

// LevelFor exposes the score-to-level bucketing used by the scorer
func (s *Scorer) LevelFor(score float64) Level {
	return s.levelFor(score)
}

// levelFor buckets an overall score into a risk level
func (s *Scorer) levelFor(score float64) Level {
	switch {
	case score < s.cfg.MediumThreshold:
		return LevelLow
	case score < s.cfg.HighThreshold:
		return LevelMedium
	case score < s.cfg.CriticalThreshold:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// rejected builds the boundary-rejection assessment for invalid input
func (s *Scorer) rejected(ctx *types.PositionContext, reason string) *Assessment {
	symbol := ""
	if ctx != nil {
		symbol = ctx.Symbol
	}
	return &Assessment{
		Symbol:         symbol,
		OverallScore:   1.0,
		RiskLevel:      LevelCritical,
		TradingAllowed: false,
		Warnings:       []string{reason},
		ComputedAt:     time.Now().UTC(),
	}
}

// validateContext returns a rejection reason, or "" when the context is usable
func validateContext(ctx *types.PositionContext) string {
	if ctx == nil {
		return "missing position context"
	}
	if ctx.AccountEquity <= 0 {
		return "account equity must be positive"
	}
	if ctx.EntryPrice <= 0 {
		return "entry price must be positive"
	}
	if ctx.RequestedSize <= 0 {
		return "requested size must be positive"
	}
	if ctx.StopDistance() <= 0 {
		return "stop distance must be positive"
	}
	return ""
}

// stopVolatility scores the stop distance against the blended volatility.
// Both sides are expressed as fractions of the entry price; a stop several
// times wider than the volatility carries several times the dollar risk.
func (s *Scorer) stopVolatility(ctx *types.PositionContext, vol *volatility.Estimate) (raw, score float64) {
	if vol == nil || !vol.Reliable || vol.Blended <= 0 {
		return 0, neutralScore
	}
	relativeStop := ctx.StopDistance() / ctx.EntryPrice
	raw = relativeStop / vol.Blended
	return raw, clamp01(raw / s.cfg.MaxStopVolRatio)
}

// volatilityRatio scores the current blended volatility against the midpoint
// of the instrument's normal regime band
func (s *Scorer) volatilityRatio(vol *volatility.Estimate, state *regime.State) (raw, score float64) {
	if vol == nil || !vol.Reliable || state == nil || state.NormalThreshold <= 0 {
		return 0, neutralScore
	}
	raw = vol.Blended / state.NormalThreshold
	return raw, clamp01(raw / s.cfg.MaxVolRatio)
}

// correlationRisk scores concentration and pairwise correlation together
func correlationRisk(snapshot *portfolio.Snapshot) (raw, score float64) {
	if snapshot == nil || snapshot.PositionCount == 0 {
		return 0, 0
	}
	raw = 0.6*snapshot.ConcentrationIndex + 0.4*snapshot.CorrelationRisk
	return raw, clamp01(raw)
}

// sessionRisk scores time-of-day liquidity. Hours are UTC; the overlap of the
// London and New York sessions is the most liquid period.
func sessionRisk(ts time.Time) (raw, score float64) {
	if ts.IsZero() {
		return 0, neutralScore
	}
	utc := ts.UTC()
	hour := utc.Hour()
	raw = float64(hour)

	if utc.Weekday() == time.Saturday || utc.Weekday() == time.Sunday {
		return raw, 1.0
	}
	switch {
	case hour >= 12 && hour < 16: // London/New York overlap
		return raw, 0.1
	case hour >= 7 && hour < 12: // London
		return raw, 0.2
	case hour >= 16 && hour < 21: // New York
		return raw, 0.3
	default: // Asia / rollover
		return raw, 0.6
	}
}

// calendarRisk scores day-of-week and month-boundary effects
func calendarRisk(ts time.Time) (raw, score float64) {
	if ts.IsZero() {
		return 0, neutralScore
	}
	utc := ts.UTC()
	raw = float64(utc.Weekday())

	if utc.Weekday() == time.Saturday || utc.Weekday() == time.Sunday {
		return raw, 1.0
	}
	if utc.Weekday() == time.Friday && utc.Hour() >= 18 {
		return raw, 0.6
	}
	if utc.Day() == 1 || utc.Day() >= 28 {
		// Month boundary rebalancing flows
		return raw, 0.4
	}
	return raw, 0.15
}
