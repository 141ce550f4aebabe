package types

// InstrumentConstraints describes the broker-imposed limits for one instrument
type InstrumentConstraints struct {
	Symbol        string  `json:"symbol"`
	MinSize       float64 `json:"min_size"`
	MaxSize       float64 `json:"max_size"`
	SizeStep      float64 `json:"size_step"`
	PerUnitValue  float64 `json:"per_unit_value"`  // account-currency value of a one-point move per unit
	MarginPerUnit float64 `json:"margin_per_unit"` // margin required to hold one unit
}

// IsValid reports whether the constraints are internally consistent
func (c InstrumentConstraints) IsValid() bool {
	if c.MinSize <= 0 || c.MaxSize <= 0 || c.SizeStep <= 0 {
		return false
	}
	if c.MaxSize < c.MinSize {
		return false
	}
	return c.PerUnitValue > 0
}
