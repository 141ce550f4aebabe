package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"volguard/internal/config"
	"volguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeedFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func collectBars(t *testing.T, p Provider, symbols []string) []types.PriceBar {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- p.Start(context.Background(), symbols)
	}()

	var bars []types.PriceBar
	for bar := range p.Bars() {
		bars = append(bars, bar)
	}
	require.NoError(t, <-done)
	return bars
}

func TestFileProviderReplaysBarsInOrder(t *testing.T) {
	path := writeFeedFile(t, `{"symbol":"EURUSD","timestamp":"2026-01-05T00:00:00Z","open":1.1,"high":1.11,"low":1.09,"close":1.105}
{"symbol":"EURUSD","timestamp":"2026-01-06T00:00:00Z","open":1.105,"high":1.12,"low":1.10,"close":1.118}
`)

	p := NewFileProvider(config.FeedConfig{Path: path})
	bars := collectBars(t, p, []string{"EURUSD"})

	require.Len(t, bars, 2)
	assert.Equal(t, 1.105, bars[0].Close)
	assert.Equal(t, 1.118, bars[1].Close)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

func TestFileProviderFiltersSymbols(t *testing.T) {
	path := writeFeedFile(t, `{"symbol":"EURUSD","open":1.1,"high":1.11,"low":1.09,"close":1.105}
{"symbol":"GBPUSD","open":1.3,"high":1.31,"low":1.29,"close":1.305}
`)

	p := NewFileProvider(config.FeedConfig{Path: path})
	bars := collectBars(t, p, []string{"GBPUSD"})

	require.Len(t, bars, 1)
	assert.Equal(t, "GBPUSD", bars[0].Symbol)
}

func TestFileProviderSkipsMalformedLines(t *testing.T) {
	path := writeFeedFile(t, `{"symbol":"EURUSD","open":1.1,"high":1.11,"low":1.09,"close":1.105}
not json at all

{"symbol":"EURUSD","open":1.105,"high":1.12,"low":1.10,"close":1.118}
`)

	p := NewFileProvider(config.FeedConfig{Path: path})
	bars := collectBars(t, p, []string{"EURUSD"})

	assert.Len(t, bars, 2)
}

func TestFileProviderMissingFileErrors(t *testing.T) {
	p := NewFileProvider(config.FeedConfig{Path: "/nonexistent/bars.jsonl"})

	err := p.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open feed file")
}

func TestFileProviderStopCancelsReplay(t *testing.T) {
	var lines string
	for i := 0; i < 1000; i++ {
		lines += `{"symbol":"EURUSD","open":1.1,"high":1.11,"low":1.09,"close":1.105}` + "\n"
	}
	path := writeFeedFile(t, lines)

	// Pace the replay so Stop lands mid-stream
	p := NewFileProvider(config.FeedConfig{Path: path, Pace: time.Millisecond})

	done := make(chan error, 1)
	go func() {
		done <- p.Start(context.Background(), nil)
	}()

	<-p.Bars()
	require.NoError(t, p.Stop())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not stop")
	}
}

func TestNewProviderDispatch(t *testing.T) {
	p, err := NewProvider(config.FeedConfig{ProviderType: "file", Path: "x"})
	require.NoError(t, err)
	assert.IsType(t, &FileProvider{}, p)

	_, err = NewProvider(config.FeedConfig{ProviderType: "synthetic"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feed provider type")
}
