package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"volguard/internal/config"
	"volguard/internal/types"
)

// FileProvider replays recorded bars from a JSON-lines file, one bar object
// per line, in file order. An optional pace delay spaces deliveries out.
type FileProvider struct {
	cfg     config.FeedConfig
	bars    chan types.PriceBar
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewFileProvider creates a replay provider for the configured file
func NewFileProvider(cfg config.FeedConfig) *FileProvider {
	return &FileProvider{
		cfg:  cfg,
		bars: make(chan types.PriceBar, 256),
	}
}

// Start reads the file line by line and delivers each parsed bar on the bars
// channel, filtered to the given symbols. Malformed lines are skipped, not
// fatal. The channel is closed when the file is exhausted or the context is
// cancelled.
func (p *FileProvider) Start(ctx context.Context, symbols []string) error {
	file, err := os.Open(p.cfg.Path)
	if err != nil {
		close(p.bars)
		return fmt.Errorf("failed to open feed file %s: %w", p.cfg.Path, err)
	}
	defer file.Close()
	defer close(p.bars)

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cancel()
		return nil
	}
	p.cancel = cancel
	p.mu.Unlock()

	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var bar types.PriceBar
		if err := json.Unmarshal(line, &bar); err != nil {
			continue
		}
		if len(wanted) > 0 && !wanted[bar.Symbol] {
			continue
		}

		select {
		case p.bars <- bar:
		case <-ctx.Done():
			return ctx.Err()
		}

		if p.cfg.Pace > 0 {
			select {
			case <-time.After(p.cfg.Pace):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return scanner.Err()
}

// Bars returns the delivery channel
func (p *FileProvider) Bars() <-chan types.PriceBar {
	return p.bars
}

// Stop cancels an in-progress replay
func (p *FileProvider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
