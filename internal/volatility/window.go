package volatility

import (
	"volguard/internal/types"
)

// Window is a fixed-capacity rolling buffer of price bars for one instrument.
// The oldest bar is evicted when a new one arrives at capacity. It is owned
// exclusively by the Estimator and is not safe for concurrent use on its own.
type Window struct {
	bars     []types.PriceBar
	capacity int
}

// NewWindow creates a rolling window with the given capacity
func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{
		bars:     make([]types.PriceBar, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a bar, evicting the oldest when the window is full.
// Bars that fail basic OHLC consistency are dropped.
func (w *Window) Append(bar types.PriceBar) bool {
	if !bar.IsValid() {
		return false
	}
	w.bars = append(w.bars, bar)
	if len(w.bars) > w.capacity {
		w.bars = w.bars[len(w.bars)-w.capacity:]
	}
	return true
}

// Len returns the current fill of the window
func (w *Window) Len() int {
	return len(w.bars)
}

// Capacity returns the window capacity
func (w *Window) Capacity() int {
	return w.capacity
}

// Bars returns a copy of the window contents, oldest first
func (w *Window) Bars() []types.PriceBar {
	out := make([]types.PriceBar, len(w.bars))
	copy(out, w.bars)
	return out
}

// LogReturns returns the close-to-close log returns over the window.
// A window of n bars yields n-1 returns.
func (w *Window) LogReturns() []float64 {
	if len(w.bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(w.bars)-1)
	for i := 1; i < len(w.bars); i++ {
		returns = append(returns, w.bars[i].LogReturn(w.bars[i-1].Close))
	}
	return returns
}
