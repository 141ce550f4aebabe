package types

import (
	"math"
	"time"
)

// PriceBar represents one OHLC observation for an instrument
type PriceBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// NewPriceBar creates a new PriceBar instance
func NewPriceBar(symbol string, timestamp time.Time, open, high, low, close float64) PriceBar {
	return PriceBar{
		Symbol:    symbol,
		Timestamp: timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
	}
}

// GetPrice returns the closing price (commonly used price)
func (b PriceBar) GetPrice() float64 {
	return b.Close
}

// GetTypicalPrice returns (high + low + close) / 3
func (b PriceBar) GetTypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// GetRange returns the price range (high - low)
func (b PriceBar) GetRange() float64 {
	return b.High - b.Low
}

// LogReturn returns the log return of this bar's close against the previous close.
// Returns 0 when either close is non-positive.
func (b PriceBar) LogReturn(prevClose float64) float64 {
	if prevClose <= 0 || b.Close <= 0 {
		return 0
	}
	return math.Log(b.Close / prevClose)
}

// LogRange returns ln(high/low), the normalized intraday range.
// Returns 0 when the bar has a degenerate range.
func (b PriceBar) LogRange() float64 {
	if b.Low <= 0 || b.High < b.Low {
		return 0
	}
	return math.Log(b.High / b.Low)
}

// LogBody returns ln(close/open). Returns 0 on degenerate input.
func (b PriceBar) LogBody() float64 {
	if b.Open <= 0 || b.Close <= 0 {
		return 0
	}
	return math.Log(b.Close / b.Open)
}

// IsValid reports whether the bar is internally consistent
func (b PriceBar) IsValid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return b.High >= b.Open && b.High >= b.Close && b.Low <= b.Open && b.Low <= b.Close
}
