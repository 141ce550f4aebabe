package feed

import (
	"context"
	"fmt"

	"volguard/internal/config"
	"volguard/internal/types"
)

// Provider streams price bars to the engine. Providers deliver real recorded
// data only; there is no synthetic generator.
type Provider interface {
	// Start begins delivering bars for the given symbols. It returns once
	// delivery has finished or the context is cancelled.
	Start(ctx context.Context, symbols []string) error

	// Bars returns the channel bars are delivered on. The channel is closed
	// when the provider stops.
	Bars() <-chan types.PriceBar

	// Stop halts delivery and releases resources
	Stop() error
}

// Kind identifies a provider implementation
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration string onto a provider kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	default:
		return KindUnknown, fmt.Errorf("unknown feed provider type: %q", s)
	}
}

// NewProvider creates a provider from configuration. Unknown provider types
// are an error, never a silent fallback.
func NewProvider(cfg config.FeedConfig) (Provider, error) {
	kind, err := ParseKind(cfg.ProviderType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFile:
		return NewFileProvider(cfg), nil
	default:
		return nil, fmt.Errorf("no provider registered for kind %s", kind)
	}
}
