package data

import (
	"sync"
)

// SeriesStore keeps a bounded trailing series of float samples per symbol.
// The regime classifier uses it for its trailing volatility history; oldest
// samples are evicted once a series reaches its capacity.
type SeriesStore struct {
	data map[string][]float64
	mu   sync.RWMutex

	capacity int
}

// NewSeriesStore creates a new series store with the given per-symbol capacity
func NewSeriesStore(capacity int) *SeriesStore {
	if capacity <= 0 {
		capacity = 252
	}
	return &SeriesStore{
		data:     make(map[string][]float64),
		capacity: capacity,
	}
}

// Append adds a sample to the symbol's series, evicting the oldest on overflow
func (s *SeriesStore) Append(symbol string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.data[symbol]
	series = append(series, value)
	if len(series) > s.capacity {
		series = series[len(series)-s.capacity:]
	}
	s.data[symbol] = series
}

// Values returns a copy of the symbol's series, oldest first
func (s *SeriesStore) Values(symbol string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, exists := s.data[symbol]
	if !exists {
		return nil
	}
	out := make([]float64, len(series))
	copy(out, series)
	return out
}

// Last returns up to n most recent samples for the symbol, oldest first
func (s *SeriesStore) Last(symbol string, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, exists := s.data[symbol]
	if !exists || n <= 0 {
		return nil
	}
	if n > len(series) {
		n = len(series)
	}
	out := make([]float64, n)
	copy(out, series[len(series)-n:])
	return out
}

// Len returns the number of samples stored for the symbol
func (s *SeriesStore) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data[symbol])
}

// Symbols returns the list of tracked symbols
func (s *SeriesStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data))
	for symbol := range s.data {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Clear removes the series for a symbol
func (s *SeriesStore) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, symbol)
}
