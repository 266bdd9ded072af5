// Package config loads and validates the engine configuration.
// All policy knobs carry the production defaults; tests shrink the
// cadences instead of sleeping through them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	Name string `yaml:"name"`

	Economy     EconomyConfig     `yaml:"economy"`
	Directive   DirectiveConfig   `yaml:"directive"`
	Survival    SurvivalConfig    `yaml:"survival"`
	Feedback    FeedbackConfig    `yaml:"feedback"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	Store       StoreConfig       `yaml:"store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// EconomyConfig configures the shared cookie pool and scoring rules.
type EconomyConfig struct {
	PoolSize                int     `yaml:"pool_size"`                 // cookies per cycle
	CycleDays               int     `yaml:"cycle_days"`                // length of a ration cycle
	MinQualityThreshold     float64 `yaml:"min_quality_threshold"`     // global acceptance floor
	EvolutionMinimum        float64 `yaml:"evolution_minimum"`         // required per-cycle quality delta
	ConsecutiveFailureLimit int     `yaml:"consecutive_failure_limit"` // failures before extinction risk
	StarvationPenalty       int     `yaml:"starvation_penalty"`        // collective punishment amount
	QualityDeclinePenalty   int     `yaml:"quality_decline_penalty"`   // non-evolution penalty amount
	MaxCookiesPerInsight    int     `yaml:"max_cookies_per_insight"`   // payout ceiling per submission
	StarvationLine          int     `yaml:"starvation_line"`           // cycle balance below this counts as starved
}

// DirectiveConfig configures the per-submission fate rules.
type DirectiveConfig struct {
	MinQuality              float64 `yaml:"min_quality"`               // actionable-insight quality floor
	ConsecutiveFailureLimit int     `yaml:"consecutive_failure_limit"` // failures before termination
	TerminationWarningLimit int     `yaml:"termination_warning_limit"` // warnings before watch status
	HistoryLimit            int     `yaml:"history_limit"`             // performance ring buffer size
}

// SurvivalConfig configures the population-wide survival sweep.
type SurvivalConfig struct {
	EvaluationCycleDays           int     `yaml:"evaluation_cycle_days"`
	ExtinctionThreshold           int     `yaml:"extinction_threshold"`
	QualityImprovementRequirement float64 `yaml:"quality_improvement_requirement"`
}

// FeedbackConfig configures the engagement feedback bridge.
type FeedbackConfig struct {
	MinAcceptableClickRate float64 `yaml:"min_acceptable_click_rate"`
	MinAcceptableRetention float64 `yaml:"min_acceptable_retention"` // seconds
	QualityBoostThreshold  float64 `yaml:"quality_boost_threshold"`  // engagement score for a buffer
	ThresholdStep          float64 `yaml:"threshold_step"`           // raise on poor engagement
	ThresholdBuffer        float64 `yaml:"threshold_buffer"`         // relax on excellent engagement
	ThresholdFloor         float64 `yaml:"threshold_floor"`
	ThresholdCeil          float64 `yaml:"threshold_ceil"`
	HistoryLimit           int     `yaml:"history_limit"`
}

// EnforcementConfig configures the quality enforcement orchestrator.
type EnforcementConfig struct {
	CycleDays            int     `yaml:"cycle_days"`
	LowEngagementLine    float64 `yaml:"low_engagement_line"`  // below: global threshold raise
	HighEngagementLine   float64 `yaml:"high_engagement_line"` // above: global threshold relax
	PromotionMinBalance  int     `yaml:"promotion_min_balance"`
	LoopIntervalSeconds  int     `yaml:"loop_interval_seconds"`  // enforcement loop tick
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"` // survival loop tick
}

// StoreConfig configures the ledger store backend.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Directory  string          `yaml:"directory"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		Name: "llmpagerank",
		Economy: EconomyConfig{
			PoolSize:                100,
			CycleDays:               7,
			MinQualityThreshold:     0.85,
			EvolutionMinimum:        0.05,
			ConsecutiveFailureLimit: 2,
			StarvationPenalty:       5,
			QualityDeclinePenalty:   8,
			MaxCookiesPerInsight:    15,
			StarvationLine:          5,
		},
		Directive: DirectiveConfig{
			MinQuality:              0.85,
			ConsecutiveFailureLimit: 2,
			TerminationWarningLimit: 2,
			HistoryLimit:            10,
		},
		Survival: SurvivalConfig{
			EvaluationCycleDays:           7,
			ExtinctionThreshold:           3,
			QualityImprovementRequirement: 0.05,
		},
		Feedback: FeedbackConfig{
			MinAcceptableClickRate: 0.15,
			MinAcceptableRetention: 30.0,
			QualityBoostThreshold:  0.8,
			ThresholdStep:          0.05,
			ThresholdBuffer:        0.02,
			ThresholdFloor:         0.5,
			ThresholdCeil:          0.95,
			HistoryLimit:           10,
		},
		Enforcement: EnforcementConfig{
			CycleDays:            3,
			LowEngagementLine:    0.3,
			HighEngagementLine:   0.7,
			PromotionMinBalance:  20,
			LoopIntervalSeconds:  60,
			SweepIntervalSeconds: 60,
		},
		Store: StoreConfig{
			DatabasePath: "data/ledger.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Directory: "data/logs",
		},
	}
}

// Load reads a YAML config file, layering it over the defaults.
// A missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break the ledger
// invariants before any component starts.
func (c *Config) Validate() error {
	if c.Economy.PoolSize <= 0 {
		return fmt.Errorf("economy.pool_size must be positive, got %d", c.Economy.PoolSize)
	}
	if c.Economy.MaxCookiesPerInsight <= 0 || c.Economy.MaxCookiesPerInsight > c.Economy.PoolSize {
		return fmt.Errorf("economy.max_cookies_per_insight must be in (0, pool_size], got %d", c.Economy.MaxCookiesPerInsight)
	}
	if c.Economy.MinQualityThreshold < 0 || c.Economy.MinQualityThreshold > 1 {
		return fmt.Errorf("economy.min_quality_threshold must be in [0, 1], got %v", c.Economy.MinQualityThreshold)
	}
	if c.Feedback.ThresholdFloor >= c.Feedback.ThresholdCeil {
		return fmt.Errorf("feedback.threshold_floor %v must be below threshold_ceil %v",
			c.Feedback.ThresholdFloor, c.Feedback.ThresholdCeil)
	}
	if c.Economy.CycleDays <= 0 || c.Survival.EvaluationCycleDays <= 0 || c.Enforcement.CycleDays <= 0 {
		return fmt.Errorf("all cycle lengths must be positive")
	}
	return nil
}
