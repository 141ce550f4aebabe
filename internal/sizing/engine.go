package sizing

import (
	"fmt"
	"math"
	"time"

	"volguard/internal/config"
	"volguard/internal/logging"
	"volguard/internal/regime"
	"volguard/internal/risk"
	"volguard/internal/types"
	"volguard/internal/volatility"

	"github.com/shopspring/decimal"
)

// Input bundles everything one sizing call consumes. Volatility and Regime
// may be nil; the methods that need them are skipped.
type Input struct {
	Context     *types.PositionContext
	Assessment  *risk.Assessment
	Constraints types.InstrumentConstraints
	Equity      float64
	Volatility  *volatility.Estimate
	Regime      *regime.State
}

// Recommendation is the result of sizing one trade. It is returned to the
// caller, immutable, and not retained by the engine.
type Recommendation struct {
	Method         string      `json:"method"` // combine mode or selected method
	Candidates     []Candidate `json:"candidates,omitempty"`
	RawSize        float64     `json:"raw_size"`
	ClampedSize    float64     `json:"clamped_size"` // 0 or a valid step multiple in [min, max]
	DollarRisk     float64     `json:"dollar_risk"`
	PercentRisk    float64     `json:"percent_risk"`
	MarginRequired float64     `json:"margin_required"`
	Rejected       bool        `json:"rejected"`
	Reasons        []string    `json:"reasons,omitempty"`
	ComputedAt     time.Time   `json:"computed_at"`
}

// Engine turns a risk assessment into a concrete, constraint-valid position
// size. Like the scorer it is hot-path: bounded arithmetic over snapshots.
type Engine struct {
	cfg     config.SizingConfig
	log     *logging.Logger
	combine CombineMode
	method  Method
}

// NewEngine creates a new position sizing engine
func NewEngine(cfg config.SizingConfig, log *logging.Logger) *Engine {
	// Set defaults
	if cfg.RiskPercent == 0 {
		cfg.RiskPercent = 0.01
	}
	if cfg.CombineMode == "" {
		cfg.CombineMode = "conservative"
	}
	if cfg.Method == "" {
		cfg.Method = "fixed_fractional"
	}
	if cfg.KellyMultiplier == 0 {
		cfg.KellyMultiplier = 0.25
	}
	if cfg.KellyMinSamples == 0 {
		cfg.KellyMinSamples = 30
	}
	if cfg.KellyMinWinRate == 0 {
		cfg.KellyMinWinRate = 0.2
	}
	if cfg.KellyMaxWinRate == 0 {
		cfg.KellyMaxWinRate = 0.8
	}
	if cfg.TargetVolatility == 0 {
		cfg.TargetVolatility = 0.15
	}
	if cfg.VolScaleMin == 0 {
		cfg.VolScaleMin = 0.1
	}
	if cfg.VolScaleMax == 0 {
		cfg.VolScaleMax = 4.0
	}
	if cfg.RegimeFactorLow == 0 {
		cfg.RegimeFactorLow = 1.5
	}
	if cfg.RegimeFactorNormal == 0 {
		cfg.RegimeFactorNormal = 1.0
	}
	if cfg.RegimeFactorHigh == 0 {
		cfg.RegimeFactorHigh = 0.7
	}
	if cfg.RegimeFactorSpike == 0 {
		cfg.RegimeFactorSpike = 0.4
	}
	if cfg.AttenuationMax == 0 {
		cfg.AttenuationMax = 0.5
	}

	combine, _ := ParseCombineMode(cfg.CombineMode)
	method, _ := ParseMethod(cfg.Method)

	return &Engine{
		cfg:     cfg,
		log:     log,
		combine: combine,
		method:  method,
	}
}

// Size computes a validated size recommendation for one trade
func (e *Engine) Size(in Input) *Recommendation {
	rec := &Recommendation{
		Method:     e.cfg.CombineMode,
		ComputedAt: time.Now().UTC(),
	}
	if e.combine == CombineSingle {
		rec.Method = e.method.String()
	}

	if reason := e.validate(in); reason != "" {
		rec.Rejected = true
		rec.Reasons = append(rec.Reasons, reason)
		return rec
	}

	// Fixed-fractional is the baseline every other method scales from
	base := e.fixedFractional(in)
	candidates := []Candidate{
		{Method: MethodFixedFractional, Name: MethodFixedFractional.String(), Size: base},
		e.kellyFraction(in, base),
		e.volatilityTarget(in, base),
		e.regimeScaled(in, base),
	}
	rec.Candidates = candidates

	raw := e.combineCandidates(candidates)

	// Attenuate as the risk score climbs past the high band
	raw *= e.attenuation(in.Assessment)
	rec.RawSize = raw

	e.applyConstraints(rec, in, raw)

	if e.log != nil {
		e.log.LogSizing(in.Context.Symbol, rec.Method, rec.RawSize, rec.ClampedSize, rec.Rejected)
	}
	return rec
}

// validate rejects invalid input at the call boundary
func (e *Engine) validate(in Input) string {
	if in.Context == nil {
		return "missing position context"
	}
	if in.Equity <= 0 {
		return "account equity must be positive"
	}
	if in.Context.StopDistance() <= 0 {
		return "stop distance must be positive"
	}
	if !in.Constraints.IsValid() {
		return "instrument constraints are invalid"
	}
	if in.Assessment != nil && !in.Assessment.TradingAllowed {
		return "trading not allowed by risk assessment"
	}
	return ""
}

// fixedFractional risks a fixed fraction of equity against the stop distance
func (e *Engine) fixedFractional(in Input) float64 {
	riskAmount := in.Equity * e.cfg.RiskPercent
	perUnitRisk := in.Context.StopDistance() * in.Constraints.PerUnitValue
	if perUnitRisk <= 0 {
		return 0
	}
	return riskAmount / perUnitRisk
}

// kellyFraction sizes from historical win rate and payoff ratio, scaled by
// the fractional-Kelly multiplier. Untrusted statistics revert the method to
// the fixed-fractional figure rather than guessing.
func (e *Engine) kellyFraction(in Input, base float64) Candidate {
	candidate := Candidate{Method: MethodKellyFraction, Name: MethodKellyFraction.String()}

	stats := in.Context.Stats
	switch {
	case stats == nil:
		candidate.Size = base
		candidate.Note = "no trade statistics, reverted to fixed fractional"
		return candidate
	case stats.SampleSize < e.cfg.KellyMinSamples:
		candidate.Size = base
		candidate.Note = fmt.Sprintf("only %d samples, reverted to fixed fractional", stats.SampleSize)
		return candidate
	case stats.WinRate < e.cfg.KellyMinWinRate || stats.WinRate > e.cfg.KellyMaxWinRate:
		candidate.Size = base
		candidate.Note = fmt.Sprintf("win rate %.2f outside trusted band, reverted to fixed fractional", stats.WinRate)
		return candidate
	case stats.PayoffRatio() <= 0:
		// Zero average loss is a degenerate model input
		candidate.Size = base
		candidate.Note = "degenerate payoff ratio, reverted to fixed fractional"
		return candidate
	}

	b := stats.PayoffRatio()
	p := stats.WinRate
	q := 1 - p

	fraction := (b*p - q) / b
	if fraction < 0 {
		fraction = 0
	}
	fraction *= e.cfg.KellyMultiplier
	if fraction > e.cfg.KellyMultiplier {
		fraction = e.cfg.KellyMultiplier
	}

	perUnitRisk := in.Context.StopDistance() * in.Constraints.PerUnitValue
	candidate.Size = in.Equity * fraction / perUnitRisk
	return candidate
}

// volatilityTarget scales the base size toward a target volatility level
func (e *Engine) volatilityTarget(in Input, base float64) Candidate {
	candidate := Candidate{Method: MethodVolatilityTarget, Name: MethodVolatilityTarget.String()}

	if in.Volatility == nil || !in.Volatility.Reliable || in.Volatility.Blended <= 0 {
		candidate.Skipped = true
		candidate.Note = "no reliable volatility estimate"
		return candidate
	}

	scale := e.cfg.TargetVolatility / in.Volatility.Blended
	if scale < e.cfg.VolScaleMin {
		scale = e.cfg.VolScaleMin
	}
	if scale > e.cfg.VolScaleMax {
		scale = e.cfg.VolScaleMax
	}

	candidate.Size = base * scale
	return candidate
}

// regimeScaled multiplies the base size by the current regime's factor
func (e *Engine) regimeScaled(in Input, base float64) Candidate {
	candidate := Candidate{Method: MethodRegimeScaled, Name: MethodRegimeScaled.String()}

	if in.Regime == nil {
		candidate.Skipped = true
		candidate.Note = "no regime state"
		return candidate
	}

	factor := e.cfg.RegimeFactorNormal
	switch in.Regime.Regime {
	case regime.RegimeLow:
		factor = e.cfg.RegimeFactorLow
	case regime.RegimeHigh:
		factor = e.cfg.RegimeFactorHigh
	case regime.RegimeSpike:
		factor = e.cfg.RegimeFactorSpike
	}

	candidate.Size = base * factor
	return candidate
}

// combineCandidates merges the method candidates per the configured mode
func (e *Engine) combineCandidates(candidates []Candidate) float64 {
	if e.combine == CombineSingle {
		for _, c := range candidates {
			if c.Method == e.method && !c.Skipped {
				return c.Size
			}
		}
		// Selected method unavailable; fall through to conservative
	}

	sum := 0.0
	count := 0
	min := math.MaxFloat64
	for _, c := range candidates {
		if c.Skipped {
			continue
		}
		sum += c.Size
		count++
		if c.Size < min {
			min = c.Size
		}
	}
	if count == 0 {
		return 0
	}

	if e.combine == CombineAverage {
		return sum / float64(count)
	}
	return min
}

// attenuation shaves the raw size linearly as the overall risk score climbs
// from the high band toward 1
func (e *Engine) attenuation(assessment *risk.Assessment) float64 {
	if assessment == nil {
		return 1
	}
	const highBand = 0.5
	if assessment.OverallScore <= highBand {
		return 1
	}
	excess := (assessment.OverallScore - highBand) / (1 - highBand)
	return 1 - excess*e.cfg.AttenuationMax
}

// applyConstraints validates the raw size against the instrument constraints,
// rounding down to the nearest step. A size that cannot be made valid marks
// the recommendation rejected with explicit reasons, never a silent substitute.
func (e *Engine) applyConstraints(rec *Recommendation, in Input, raw float64) {
	if raw <= 0 {
		rec.Rejected = true
		rec.Reasons = append(rec.Reasons, "computed size is zero")
		return
	}

	c := in.Constraints
	step := decimal.NewFromFloat(c.SizeStep)
	size := decimal.NewFromFloat(raw)

	// Round down to the nearest valid step
	clamped := size.Div(step).Floor().Mul(step)

	maxSize := decimal.NewFromFloat(c.MaxSize).Div(step).Floor().Mul(step)
	if clamped.GreaterThan(maxSize) {
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("size capped at instrument maximum %s", maxSize))
		clamped = maxSize
	}

	// Margin availability
	if c.MarginPerUnit > 0 {
		marginPerUnit := decimal.NewFromFloat(c.MarginPerUnit)
		required := clamped.Mul(marginPerUnit)
		available := decimal.NewFromFloat(in.Equity)
		if required.GreaterThan(available) {
			affordable := available.Div(marginPerUnit).Div(step).Floor().Mul(step)
			rec.Reasons = append(rec.Reasons, "size reduced to fit available margin")
			clamped = affordable
		}
	}

	minSize := decimal.NewFromFloat(c.MinSize)
	if clamped.LessThan(minSize) {
		rec.Rejected = true
		rec.ClampedSize = 0
		rec.Reasons = append(rec.Reasons,
			fmt.Sprintf("validated size %s is below instrument minimum %s", clamped, minSize))
		return
	}

	finalSize, _ := clamped.Float64()
	rec.ClampedSize = finalSize
	rec.DollarRisk = finalSize * in.Context.StopDistance() * c.PerUnitValue
	rec.PercentRisk = rec.DollarRisk / in.Equity
	rec.MarginRequired = finalSize * c.MarginPerUnit
}
