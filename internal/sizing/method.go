package sizing

// Method identifies one sizing method. The set is closed: new methods are
// added by extending this enum and its handler in the engine, never by
// free-text string dispatch.
type Method int

const (
	MethodFixedFractional Method = iota
	MethodKellyFraction
	MethodVolatilityTarget
	MethodRegimeScaled
)

// String returns the method's stable name
func (m Method) String() string {
	switch m {
	case MethodFixedFractional:
		return "fixed_fractional"
	case MethodKellyFraction:
		return "kelly_fraction"
	case MethodVolatilityTarget:
		return "volatility_target"
	case MethodRegimeScaled:
		return "regime_scaled"
	}
	return "unknown"
}

// ParseMethod resolves a configured method name to its enum value
func ParseMethod(name string) (Method, bool) {
	switch name {
	case "fixed_fractional":
		return MethodFixedFractional, true
	case "kelly_fraction":
		return MethodKellyFraction, true
	case "volatility_target":
		return MethodVolatilityTarget, true
	case "regime_scaled":
		return MethodRegimeScaled, true
	}
	return MethodFixedFractional, false
}

// CombineMode selects how the method candidates are merged
type CombineMode int

const (
	CombineConservative CombineMode = iota
	CombineAverage
	CombineSingle
)

// ParseCombineMode resolves a configured combine mode name
func ParseCombineMode(name string) (CombineMode, bool) {
	switch name {
	case "conservative":
		return CombineConservative, true
	case "average":
		return CombineAverage, true
	case "single":
		return CombineSingle, true
	}
	return CombineConservative, false
}

// Candidate is one method's size estimate before validation
type Candidate struct {
	Method  Method  `json:"-"`
	Name    string  `json:"method"`
	Size    float64 `json:"size"`
	Skipped bool    `json:"skipped,omitempty"`
	Note    string  `json:"note,omitempty"`
}
