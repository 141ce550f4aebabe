package types

import (
	"math"
	"time"
)

// Direction represents the side of a position
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// OpenPosition represents one open position as supplied by the caller.
// The engine never retains or mutates these; they are read-only inputs.
type OpenPosition struct {
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	BaseCurrency  string    `json:"base_currency,omitempty"`
	QuoteCurrency string    `json:"quote_currency,omitempty"`
}

// Notional returns the notional value of the position
func (p OpenPosition) Notional() float64 {
	return math.Abs(p.Size) * p.EntryPrice
}

// SignedNotional returns the notional value signed by direction
func (p OpenPosition) SignedNotional() float64 {
	n := p.Notional()
	if p.Direction == DirectionShort {
		return -n
	}
	return n
}

// TradeStats holds the historical performance inputs for Kelly sizing
type TradeStats struct {
	SampleSize int     `json:"sample_size"`
	WinRate    float64 `json:"win_rate"`
	AvgWin     float64 `json:"avg_win"`
	AvgLoss    float64 `json:"avg_loss"` // expressed as a positive magnitude
}

// PayoffRatio returns avg win / avg loss, or 0 when the average loss is degenerate
func (s TradeStats) PayoffRatio() float64 {
	if s.AvgLoss <= 0 {
		return 0
	}
	return s.AvgWin / s.AvgLoss
}

// PositionContext describes one candidate or open trade to be scored and sized.
// It is constructed per request by the caller and not retained by the engine.
type PositionContext struct {
	Symbol        string         `json:"symbol"`
	Direction     Direction      `json:"direction"`
	RequestedSize float64        `json:"requested_size"`
	EntryPrice    float64        `json:"entry_price"`
	StopPrice     float64        `json:"stop_price"`
	TargetPrice   float64        `json:"target_price,omitempty"`
	AccountEquity float64        `json:"account_equity"`
	OpenPositions []OpenPosition `json:"open_positions,omitempty"`
	Stats         *TradeStats    `json:"stats,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// StopDistance returns the absolute distance between entry and stop price
func (c PositionContext) StopDistance() float64 {
	return math.Abs(c.EntryPrice - c.StopPrice)
}

// TargetDistance returns the absolute distance between entry and target price
func (c PositionContext) TargetDistance() float64 {
	if c.TargetPrice == 0 {
		return 0
	}
	return math.Abs(c.TargetPrice - c.EntryPrice)
}

// RiskRewardRatio returns reward / risk, or 0 when the stop distance is degenerate
func (c PositionContext) RiskRewardRatio() float64 {
	risk := c.StopDistance()
	if risk == 0 {
		return 0
	}
	return c.TargetDistance() / risk
}

// Notional returns the requested notional value of the trade
func (c PositionContext) Notional() float64 {
	return math.Abs(c.RequestedSize) * c.EntryPrice
}
