package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tunables are the pipeline parameters operators may adjust without a release.
type Tunables struct {
	Signals SignalsConfig `mapstructure:"signals"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Differ  DifferConfig  `mapstructure:"differ"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
}

// SignalsConfig controls candidate aggregation.
type SignalsConfig struct {
	Workers int `mapstructure:"workers"`
	// VolatilityCeiling is the volatility treated as maximal risk (normalizes to 1).
	VolatilityCeiling float64 `mapstructure:"volatility_ceiling"`
}

// WeightsConfig are the relative weights of the score components.
type WeightsConfig struct {
	Technical float64 `mapstructure:"technical"`
	Sentiment float64 `mapstructure:"sentiment"`
	RiskFit   float64 `mapstructure:"risk_fit"`
	BudgetFit float64 `mapstructure:"budget_fit"`
}

// ThresholdsConfig are the minimum composite scores per recommendation type.
type ThresholdsConfig struct {
	StrongBuy float64 `mapstructure:"strong_buy"`
	Buy       float64 `mapstructure:"buy"`
	Hold      float64 `mapstructure:"hold"`
	Sell      float64 `mapstructure:"sell"`
}

// RiskLevelsConfig maps volatility to a risk level.
type RiskLevelsConfig struct {
	LowBelow    float64 `mapstructure:"low_below"`
	MediumBelow float64 `mapstructure:"medium_below"`
}

// HorizonConfig scales expected return by holding period.
type HorizonConfig struct {
	Short  float64 `mapstructure:"short"`
	Medium float64 `mapstructure:"medium"`
	Long   float64 `mapstructure:"long"`
}

// ScoringConfig controls the recommendation scorer.
type ScoringConfig struct {
	Weights              WeightsConfig    `mapstructure:"weights"`
	Thresholds           ThresholdsConfig `mapstructure:"thresholds"`
	RiskLevels           RiskLevelsConfig `mapstructure:"risk_levels"`
	Horizon              HorizonConfig    `mapstructure:"horizon"`
	MaxRecommendations   int              `mapstructure:"max_recommendations"`
	MaxAllocationPercent float64          `mapstructure:"max_allocation_percent"`
	TargetBonus          float64          `mapstructure:"target_bonus"`
}

// DifferConfig controls run-over-run comparison.
type DifferConfig struct {
	MinConfidenceChange float64 `mapstructure:"min_confidence_change"`
}

// LedgerConfig controls optimistic-concurrency retries.
type LedgerConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

func newTunablesViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("BULLBEAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("signals.workers", 8)
	v.SetDefault("signals.volatility_ceiling", 0.6)

	v.SetDefault("scoring.weights.technical", 0.45)
	v.SetDefault("scoring.weights.sentiment", 0.30)
	v.SetDefault("scoring.weights.risk_fit", 0.15)
	v.SetDefault("scoring.weights.budget_fit", 0.10)
	v.SetDefault("scoring.thresholds.strong_buy", 0.75)
	v.SetDefault("scoring.thresholds.buy", 0.60)
	v.SetDefault("scoring.thresholds.hold", 0.40)
	v.SetDefault("scoring.thresholds.sell", 0.25)
	v.SetDefault("scoring.risk_levels.low_below", 0.20)
	v.SetDefault("scoring.risk_levels.medium_below", 0.40)
	v.SetDefault("scoring.horizon.short", 0.5)
	v.SetDefault("scoring.horizon.medium", 1.0)
	v.SetDefault("scoring.horizon.long", 1.5)
	v.SetDefault("scoring.max_recommendations", 10)
	v.SetDefault("scoring.max_allocation_percent", 25.0)
	v.SetDefault("scoring.target_bonus", 0.05)

	v.SetDefault("differ.min_confidence_change", 0.1)

	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.initial_interval", "20ms")
	v.SetDefault("ledger.max_interval", "500ms")
	return v
}

// LoadTunables reads defaults, then the YAML file at path when non-empty,
// then BULLBEAR_* environment overrides (e.g. BULLBEAR_SCORING_MAX_RECOMMENDATIONS).
func LoadTunables(path string) (Tunables, error) {
	v := newTunablesViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Tunables{}, fmt.Errorf("read tunables %s: %w", path, err)
		}
	}

	var t Tunables
	if err := v.Unmarshal(&t); err != nil {
		return Tunables{}, fmt.Errorf("decode tunables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}

// DefaultTunables returns the built-in defaults with environment overrides applied.
func DefaultTunables() Tunables {
	t, err := LoadTunables("")
	if err != nil {
		panic(err)
	}
	return t
}

// Validate rejects parameter sets the pipeline cannot run with.
func (t Tunables) Validate() error {
	w := t.Scoring.Weights
	if w.Technical < 0 || w.Sentiment < 0 || w.RiskFit < 0 || w.BudgetFit < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if w.Technical+w.Sentiment+w.RiskFit+w.BudgetFit <= 0 {
		return fmt.Errorf("scoring weights must not all be zero")
	}
	th := t.Scoring.Thresholds
	if th.StrongBuy < th.Buy || th.Buy < th.Hold || th.Hold < th.Sell {
		return fmt.Errorf("scoring thresholds must be descending from strong_buy to sell")
	}
	if t.Scoring.MaxRecommendations <= 0 {
		return fmt.Errorf("scoring.max_recommendations must be positive")
	}
	if t.Scoring.MaxAllocationPercent <= 0 || t.Scoring.MaxAllocationPercent > 100 {
		return fmt.Errorf("scoring.max_allocation_percent must be in (0, 100]")
	}
	if t.Differ.MinConfidenceChange < 0 {
		return fmt.Errorf("differ.min_confidence_change must be non-negative")
	}
	if t.Signals.VolatilityCeiling <= 0 {
		return fmt.Errorf("signals.volatility_ceiling must be positive")
	}
	return nil
}
