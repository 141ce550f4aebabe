package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesStoreAppendAndValues(t *testing.T) {
	s := NewSeriesStore(5)

	for i := 1; i <= 3; i++ {
		s.Append("EURUSD", float64(i))
	}

	assert.Equal(t, 3, s.Len("EURUSD"))
	assert.Equal(t, []float64{1, 2, 3}, s.Values("EURUSD"))

	assert.Equal(t, []float64{2, 3}, s.Last("EURUSD", 2))
	assert.Equal(t, []float64{1, 2, 3}, s.Last("EURUSD", 10))
}

func TestSeriesStoreEvictsBeyondCapacity(t *testing.T) {
	s := NewSeriesStore(3)

	for i := 1; i <= 6; i++ {
		s.Append("EURUSD", float64(i))
	}

	assert.Equal(t, []float64{4, 5, 6}, s.Values("EURUSD"))
}

func TestSeriesStoreIsolatesSymbols(t *testing.T) {
	s := NewSeriesStore(10)

	s.Append("EURUSD", 1)
	s.Append("GBPUSD", 2)

	assert.Equal(t, []float64{1}, s.Values("EURUSD"))
	assert.Equal(t, []float64{2}, s.Values("GBPUSD"))
	assert.ElementsMatch(t, []string{"EURUSD", "GBPUSD"}, s.Symbols())

	s.Clear("EURUSD")
	assert.Zero(t, s.Len("EURUSD"))
	assert.Equal(t, 1, s.Len("GBPUSD"))
}

func TestSeriesStoreUnknownSymbol(t *testing.T) {
	s := NewSeriesStore(10)

	assert.Nil(t, s.Values("XAUUSD"))
	assert.Nil(t, s.Last("XAUUSD", 5))
}
