package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ConfigVersion identifies the configuration schema version
const ConfigVersion = "1"

// Config represents the complete application configuration
type Config struct {
	Version    string           `json:"version"`
	App        AppConfig        `json:"app"`
	Volatility VolatilityConfig `json:"volatility"`
	Regime     RegimeConfig     `json:"regime"`
	Portfolio  PortfolioConfig  `json:"portfolio"`
	Scoring    ScoringConfig    `json:"scoring"`
	Sizing     SizingConfig     `json:"sizing"`
	Feed       FeedConfig       `json:"feed"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// AppConfig contains basic application configuration
type AppConfig struct {
	Name            string        `json:"name"`
	Environment     string        `json:"environment"` // "development", "production", "test"
	Symbols         []string      `json:"symbols"`
	CycleInterval   time.Duration `json:"cycle_interval"` // slow-path recompute cadence
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// VolatilityConfig contains volatility estimator configuration
type VolatilityConfig struct {
	WindowSize     int     `json:"window_size"`      // rolling bar window capacity
	MinSamples     int     `json:"min_samples"`      // reliability floor
	PeriodsPerYear float64 `json:"periods_per_year"` // annualization factor (252 for daily bars)

	// EWMA
	EWMALambda float64 `json:"ewma_lambda"` // 0.94

	// GARCH(1,1), fixed parameters, no online re-estimation
	GARCHOmega float64 `json:"garch_omega"`
	GARCHAlpha float64 `json:"garch_alpha"`
	GARCHBeta  float64 `json:"garch_beta"`

	// ATR diagnostic
	ATRPeriod int `json:"atr_period"`

	// Blend weights, renormalized over estimators with valid inputs
	Weights BlendWeights `json:"weights"`
}

// BlendWeights holds the blending weights for the volatility estimators
type BlendWeights struct {
	Historical  float64 `json:"historical"`
	EWMA        float64 `json:"ewma"`
	GARCH       float64 `json:"garch"`
	Parkinson   float64 `json:"parkinson"`
	GarmanKlass float64 `json:"garman_klass"`
}

// RegimeConfig contains regime classifier configuration
type RegimeConfig struct {
	HistorySize         int     `json:"history_size"`          // trailing volatility samples (252)
	MinThresholdSamples int     `json:"min_threshold_samples"` // percentile floor before seeds apply
	SeedLowThreshold    float64 `json:"seed_low_threshold"`
	SeedNormalThreshold float64 `json:"seed_normal_threshold"`
	SeedHighThreshold   float64 `json:"seed_high_threshold"`

	// Anticipation
	ShortTrendWindow    int `json:"short_trend_window"`   // 5
	LongTrendWindow     int `json:"long_trend_window"`    // 20
	AnticipationHorizon int `json:"anticipation_horizon"` // samples to project forward

	MaxTransitionLog int `json:"max_transition_log"`
}

// PortfolioConfig contains portfolio aggregator configuration
type PortfolioConfig struct {
	DefaultCorrelation        float64 `json:"default_correlation"`         // unrelated instruments
	SharedCurrencyCorrelation float64 `json:"shared_currency_correlation"` // shared base or quote
	SameSymbolCorrelation     float64 `json:"same_symbol_correlation"`
}

// ScoringConfig contains risk scorer configuration
type ScoringConfig struct {
	Weights FactorWeights `json:"weights"`

	// Risk level buckets over the overall score
	MediumThreshold   float64 `json:"medium_threshold"`   // 0.3
	HighThreshold     float64 `json:"high_threshold"`     // 0.5
	CriticalThreshold float64 `json:"critical_threshold"` // 0.7

	// Factor normalization anchors
	MaxSizeToEquity  float64 `json:"max_size_to_equity"`  // hard cap, notional/equity
	MaxStopVolRatio  float64 `json:"max_stop_vol_ratio"`  // stop distance vs volatility
	MaxLeverage      float64 `json:"max_leverage"`        // effective leverage anchor
	MaxVolRatio      float64 `json:"max_vol_ratio"`       // blended vs normal-regime volatility
}

// FactorWeights holds the fixed weights of the risk factors, summing to 1
type FactorWeights struct {
	SizeToEquity    float64 `json:"size_to_equity"`
	StopVolatility  float64 `json:"stop_volatility"`
	Leverage        float64 `json:"leverage"`
	Session         float64 `json:"session"`
	VolatilityRatio float64 `json:"volatility_ratio"`
	Correlation     float64 `json:"correlation"`
	Calendar        float64 `json:"calendar"`
}

// Sum returns the total of all factor weights
func (w FactorWeights) Sum() float64 {
	return w.SizeToEquity + w.StopVolatility + w.Leverage + w.Session +
		w.VolatilityRatio + w.Correlation + w.Calendar
}

// SizingConfig contains position sizing configuration
type SizingConfig struct {
	RiskPercent float64 `json:"risk_percent"` // fixed-fractional risk per trade
	CombineMode string  `json:"combine_mode"` // "conservative", "average", "single"
	Method      string  `json:"method"`       // selected method when combine_mode is "single"

	// Kelly
	KellyMultiplier float64 `json:"kelly_multiplier"`  // fractional Kelly cap, 0.25
	KellyMinSamples int     `json:"kelly_min_samples"` // 30
	KellyMinWinRate float64 `json:"kelly_min_win_rate"`
	KellyMaxWinRate float64 `json:"kelly_max_win_rate"`

	// Volatility targeting
	TargetVolatility float64 `json:"target_volatility"`
	VolScaleMin      float64 `json:"vol_scale_min"` // 0.1
	VolScaleMax      float64 `json:"vol_scale_max"` // 4.0

	// Regime scaling
	RegimeFactorLow    float64 `json:"regime_factor_low"`
	RegimeFactorNormal float64 `json:"regime_factor_normal"`
	RegimeFactorHigh   float64 `json:"regime_factor_high"`
	RegimeFactorSpike  float64 `json:"regime_factor_spike"`

	// Risk-score attenuation above the High threshold
	AttenuationMax float64 `json:"attenuation_max"` // max fraction shaved off the raw size
}

// FeedConfig contains bar feed configuration
type FeedConfig struct {
	ProviderType string        `json:"provider_type"` // "file"
	Path         string        `json:"path"`
	Pace         time.Duration `json:"pace"` // optional delay between replayed bars
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `json:"level"`     // "debug", "info", "warn", "error"
	Format    string `json:"format"`    // "json", "text"
	Output    string `json:"output"`    // "stdout", "file", "both"
	Directory string `json:"directory"` // log file directory

	// File rotation
	MaxSize    int  `json:"max_size"`    // max MB per file
	MaxBackups int  `json:"max_backups"` // max number of old files
	MaxAge     int  `json:"max_age"`     // max days to retain
	Compress   bool `json:"compress"`    // compress old files
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
	Addr      string `json:"addr"` // listen address for the /metrics endpoint
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: ConfigVersion,
		App: AppConfig{
			Name:            "volguard",
			Environment:     "development",
			Symbols:         []string{"EURUSD"},
			CycleInterval:   5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Volatility: VolatilityConfig{
			WindowSize:     100,
			MinSamples:     10,
			PeriodsPerYear: 252,
			EWMALambda:     0.94,
			GARCHOmega:     0.000002,
			GARCHAlpha:     0.09,
			GARCHBeta:      0.89,
			ATRPeriod:      14,
			Weights: BlendWeights{
				Historical:  0.15,
				EWMA:        0.30,
				GARCH:       0.30,
				Parkinson:   0.10,
				GarmanKlass: 0.15,
			},
		},
		Regime: RegimeConfig{
			HistorySize:         252,
			MinThresholdSamples: 20,
			SeedLowThreshold:    0.08,
			SeedNormalThreshold: 0.15,
			SeedHighThreshold:   0.25,
			ShortTrendWindow:    5,
			LongTrendWindow:     20,
			AnticipationHorizon: 5,
			MaxTransitionLog:    500,
		},
		Portfolio: PortfolioConfig{
			DefaultCorrelation:        0.25,
			SharedCurrencyCorrelation: 0.65,
			SameSymbolCorrelation:     1.0,
		},
		Scoring: ScoringConfig{
			Weights: FactorWeights{
				SizeToEquity:    0.25,
				StopVolatility:  0.20,
				Leverage:        0.15,
				Session:         0.10,
				VolatilityRatio: 0.15,
				Correlation:     0.10,
				Calendar:        0.05,
			},
			MediumThreshold:   0.3,
			HighThreshold:     0.5,
			CriticalThreshold: 0.7,
			MaxSizeToEquity:   0.5,
			MaxStopVolRatio:   5.0,
			MaxLeverage:       10.0,
			MaxVolRatio:       4.0,
		},
		Sizing: SizingConfig{
			RiskPercent:        0.01,
			CombineMode:        "conservative",
			Method:             "fixed_fractional",
			KellyMultiplier:    0.25,
			KellyMinSamples:    30,
			KellyMinWinRate:    0.2,
			KellyMaxWinRate:    0.8,
			TargetVolatility:   0.15,
			VolScaleMin:        0.1,
			VolScaleMax:        4.0,
			RegimeFactorLow:    1.5,
			RegimeFactorNormal: 1.0,
			RegimeFactorHigh:   0.7,
			RegimeFactorSpike:  0.4,
			AttenuationMax:     0.5,
		},
		Feed: FeedConfig{
			ProviderType: "file",
			Path:         "./data/bars.jsonl",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			Directory:  "./logs",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "volguard",
			Addr:      ":9090",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	// Create default config if file doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaultConfig := DefaultConfig()
		if err := SaveConfig(defaultConfig, configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if len(c.App.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}

	// Volatility
	if c.Volatility.WindowSize < 2 {
		return fmt.Errorf("volatility window size must be at least 2")
	}
	if c.Volatility.MinSamples < 2 {
		return fmt.Errorf("volatility min samples must be at least 2")
	}
	if c.Volatility.EWMALambda <= 0 || c.Volatility.EWMALambda >= 1 {
		return fmt.Errorf("ewma lambda must be in (0, 1)")
	}
	if c.Volatility.GARCHAlpha+c.Volatility.GARCHBeta >= 1 {
		return fmt.Errorf("garch alpha + beta must be below 1 for a finite unconditional variance")
	}
	if c.Volatility.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods per year must be positive")
	}

	// Regime
	if c.Regime.HistorySize < c.Regime.MinThresholdSamples {
		return fmt.Errorf("regime history size must be at least min threshold samples")
	}
	if !(c.Regime.SeedLowThreshold < c.Regime.SeedNormalThreshold &&
		c.Regime.SeedNormalThreshold < c.Regime.SeedHighThreshold) {
		return fmt.Errorf("regime seed thresholds must be strictly increasing")
	}
	if c.Regime.ShortTrendWindow >= c.Regime.LongTrendWindow {
		return fmt.Errorf("short trend window must be below long trend window")
	}

	// Scoring
	sum := c.Scoring.Weights.Sum()
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("risk factor weights must sum to 1, got %.4f", sum)
	}
	if !(c.Scoring.MediumThreshold < c.Scoring.HighThreshold &&
		c.Scoring.HighThreshold < c.Scoring.CriticalThreshold) {
		return fmt.Errorf("risk level thresholds must be strictly increasing")
	}

	// Sizing
	if c.Sizing.RiskPercent <= 0 || c.Sizing.RiskPercent > 0.1 {
		return fmt.Errorf("risk percent must be in (0, 0.1]")
	}
	if c.Sizing.KellyMultiplier <= 0 || c.Sizing.KellyMultiplier > 1 {
		return fmt.Errorf("kelly multiplier must be in (0, 1]")
	}
	switch c.Sizing.CombineMode {
	case "conservative", "average", "single":
	default:
		return fmt.Errorf("invalid combine mode: %s", c.Sizing.CombineMode)
	}
	if c.Sizing.VolScaleMin <= 0 || c.Sizing.VolScaleMax <= c.Sizing.VolScaleMin {
		return fmt.Errorf("volatility scale bounds must satisfy 0 < min < max")
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
