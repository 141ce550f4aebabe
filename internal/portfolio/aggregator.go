package portfolio

import (
	"math"
	"sync/atomic"
	"time"

	"volguard/internal/config"
	"volguard/internal/types"
)

// Snapshot is the aggregated risk picture of the open positions. Snapshots
// are immutable and swapped wholesale on each recompute.
type Snapshot struct {
	TotalExposure      float64   `json:"total_exposure"`
	NetExposure        float64   `json:"net_exposure"`
	ConcentrationIndex float64   `json:"concentration_index"` // Herfindahl over exposure shares
	CorrelationRisk    float64   `json:"correlation_risk"`
	LeverageRatio      float64   `json:"leverage_ratio"`
	PositionCount      int       `json:"position_count"`
	ComputedAt         time.Time `json:"computed_at"`
}

// Aggregator recomputes the portfolio snapshot from an externally supplied
// open-position list on the slow cadence. Current is the lock-free fast read.
type Aggregator struct {
	cfg     config.PortfolioConfig
	current atomic.Pointer[Snapshot]
}

// NewAggregator creates a new portfolio aggregator
func NewAggregator(cfg config.PortfolioConfig) *Aggregator {
	// Set defaults
	if cfg.DefaultCorrelation == 0 {
		cfg.DefaultCorrelation = 0.25
	}
	if cfg.SharedCurrencyCorrelation == 0 {
		cfg.SharedCurrencyCorrelation = 0.65
	}
	if cfg.SameSymbolCorrelation == 0 {
		cfg.SameSymbolCorrelation = 1.0
	}

	return &Aggregator{cfg: cfg}
}

// Aggregate computes a fresh snapshot from the position list and publishes it
// atomically. Positions are read-only inputs owned by the caller.
func (a *Aggregator) Aggregate(positions []types.OpenPosition, equity float64) *Snapshot {
	snapshot := &Snapshot{
		PositionCount: len(positions),
		ComputedAt:    time.Now().UTC(),
	}

	for _, pos := range positions {
		snapshot.TotalExposure += pos.Notional()
		snapshot.NetExposure += pos.SignedNotional()
	}

	snapshot.ConcentrationIndex = a.herfindahl(positions, snapshot.TotalExposure)
	snapshot.CorrelationRisk = a.correlationRisk(positions, snapshot.TotalExposure)

	if equity > 0 {
		snapshot.LeverageRatio = snapshot.TotalExposure / equity
	}

	a.current.Store(snapshot)
	return snapshot
}

// Current returns the latest published snapshot, or nil before the first
// aggregation. Safe for concurrent fast-path use.
func (a *Aggregator) Current() *Snapshot {
	return a.current.Load()
}

// herfindahl returns the sum of squared exposure shares
func (a *Aggregator) herfindahl(positions []types.OpenPosition, totalExposure float64) float64 {
	if len(positions) == 0 || totalExposure == 0 {
		return 0
	}

	// Shares are grouped per instrument so split positions do not mask concentration
	bySymbol := make(map[string]float64)
	for _, pos := range positions {
		bySymbol[pos.Symbol] += pos.Notional()
	}

	hhi := 0.0
	for _, exposure := range bySymbol {
		share := exposure / totalExposure
		hhi += share * share
	}
	return hhi
}

// correlationRisk is a simplified pairwise estimate: an exposure-weighted
// average of a currency-similarity heuristic, not a full covariance matrix
func (a *Aggregator) correlationRisk(positions []types.OpenPosition, totalExposure float64) float64 {
	if len(positions) < 2 || totalExposure == 0 {
		return 0
	}

	weighted := 0.0
	totalWeight := 0.0
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			weight := (positions[i].Notional() / totalExposure) * (positions[j].Notional() / totalExposure)
			weighted += a.similarity(positions[i], positions[j]) * weight
			totalWeight += weight
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return math.Min(1, weighted/totalWeight)
}

// similarity scores how related two positions are
func (a *Aggregator) similarity(p1, p2 types.OpenPosition) float64 {
	if p1.Symbol == p2.Symbol {
		return a.cfg.SameSymbolCorrelation
	}
	if p1.BaseCurrency != "" && (p1.BaseCurrency == p2.BaseCurrency || p1.BaseCurrency == p2.QuoteCurrency) {
		return a.cfg.SharedCurrencyCorrelation
	}
	if p1.QuoteCurrency != "" && (p1.QuoteCurrency == p2.QuoteCurrency || p1.QuoteCurrency == p2.BaseCurrency) {
		return a.cfg.SharedCurrencyCorrelation
	}
	return a.cfg.DefaultCorrelation
}
