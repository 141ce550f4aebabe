package risk

// FactorKind identifies one risk factor in the composite score. The set is
// closed: new factors are added by extending this enum and wiring a handler
// in the scorer, never by string comparison.
type FactorKind int

const (
	FactorSizeToEquity FactorKind = iota
	FactorStopVolatility
	FactorLeverage
	FactorSession
	FactorVolatilityRatio
	FactorCorrelation
	FactorCalendar
)

// String returns the factor's stable name
func (k FactorKind) String() string {
	switch k {
	case FactorSizeToEquity:
		return "size_to_equity"
	case FactorStopVolatility:
		return "stop_volatility"
	case FactorLeverage:
		return "leverage"
	case FactorSession:
		return "session"
	case FactorVolatilityRatio:
		return "volatility_ratio"
	case FactorCorrelation:
		return "correlation"
	case FactorCalendar:
		return "calendar"
	}
	return "unknown"
}

// FactorScore is one named, weighted risk contributor. It exists only for the
// duration of a single assessment.
type FactorScore struct {
	Kind   FactorKind `json:"-"`
	Name   string     `json:"name"`
	Raw    float64    `json:"raw"`
	Score  float64    `json:"score"` // normalized to [0, 1]
	Weight float64    `json:"weight"`
}

// clamp01 bounds a score into [0, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
