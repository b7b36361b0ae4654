package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tier is the ordinal complexity classification driving model selection.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

var tierRanks = map[Tier]int{
	TierLow:      0,
	TierMedium:   1,
	TierHigh:     2,
	TierCritical: 3,
}

// Rank returns the ordinal rank of the tier, low first.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Lower returns the next tier down, or TierLow at the floor.
func (t Tier) Lower() Tier {
	switch t {
	case TierCritical:
		return TierHigh
	case TierHigh:
		return TierMedium
	default:
		return TierLow
	}
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// LengthBands sets the prompt-length thresholds, in characters, separating
// the short/medium/long/very-long bands.
type LengthBands struct {
	Short  int `yaml:"short" json:"short"`
	Medium int `yaml:"medium" json:"medium"`
	Long   int `yaml:"long" json:"long"`
}

// SignalWeights combines the three complexity signals into one score.
type SignalWeights struct {
	Length  float64 `yaml:"length" json:"length"`
	Keyword float64 `yaml:"keyword" json:"keyword"`
	Context float64 `yaml:"context" json:"context"`
}

// ScoringConfig configures complexity scoring.
type ScoringConfig struct {
	Bands LengthBands `yaml:"bands" json:"bands"`
	// Keywords maps a task type to the phrases that nudge its tier up.
	Keywords map[string][]string `yaml:"keywords" json:"keywords"`
	Weights  SignalWeights       `yaml:"weights" json:"weights"`
	// ContextThreshold is the context size (prior turns or input fields)
	// above which the context signal escalates.
	ContextThreshold int `yaml:"context_threshold" json:"context_threshold"`
}

// CacheConfig bounds the decision cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries"`
	// EnableRedis adds a Redis second level shared across processes.
	EnableRedis bool          `yaml:"enable_redis" json:"enable_redis"`
	RedisTTL    time.Duration `yaml:"redis_ttl" json:"redis_ttl"`
}

// RouterConfig is the full model-routing configuration.
type RouterConfig struct {
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`

	// RoutingMatrix maps provider -> tier -> model name.
	RoutingMatrix map[string]map[Tier]string `yaml:"routing_matrix" json:"routing_matrix"`

	// ModelCosts assigns each model a cost tier; models above MaxCostTier
	// are skipped during selection. Unlisted models cost zero.
	ModelCosts  map[string]int `yaml:"model_costs" json:"model_costs"`
	MaxCostTier int            `yaml:"max_cost_tier" json:"max_cost_tier"`

	// TaskProviders maps a task type to its preference-ordered provider
	// list. The "default" entry applies to unlisted task types.
	TaskProviders map[string][]string `yaml:"task_providers" json:"task_providers"`

	DefaultProvider string `yaml:"default_provider" json:"default_provider"`
	DefaultModel    string `yaml:"default_model" json:"default_model"`

	// RetryWithLowerComplexity retries selection one tier lower before
	// falling back to the default provider/model.
	RetryWithLowerComplexity bool `yaml:"retry_with_lower_complexity" json:"retry_with_lower_complexity"`

	Cache CacheConfig `yaml:"cache" json:"cache"`
}

// DefaultRouterConfig returns sensible defaults: three providers, a cost
// ceiling admitting everything, and a five-minute 1000-entry cache.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Scoring: ScoringConfig{
			Bands: LengthBands{Short: 200, Medium: 800, Long: 1600},
			Keywords: map[string][]string{
				"general": {"analyze", "architecture", "optimize", "prove", "synthesize"},
			},
			Weights:          SignalWeights{Length: 0.5, Keyword: 0.3, Context: 0.2},
			ContextThreshold: 5,
		},
		RoutingMatrix: map[string]map[Tier]string{
			"openai": {
				TierLow:      "gpt-4o-mini",
				TierMedium:   "gpt-4o-mini",
				TierHigh:     "gpt-4o",
				TierCritical: "gpt-4o",
			},
			"anthropic": {
				TierLow:      "claude-haiku",
				TierMedium:   "claude-sonnet",
				TierHigh:     "claude-sonnet",
				TierCritical: "claude-opus",
			},
			"deepseek": {
				TierLow:      "deepseek-chat",
				TierMedium:   "deepseek-chat",
				TierHigh:     "deepseek-reasoner",
				TierCritical: "deepseek-reasoner",
			},
		},
		ModelCosts: map[string]int{
			"gpt-4o-mini":       1,
			"gpt-4o":            3,
			"claude-haiku":      1,
			"claude-sonnet":     2,
			"claude-opus":       4,
			"deepseek-chat":     1,
			"deepseek-reasoner": 2,
		},
		MaxCostTier: 4,
		TaskProviders: map[string][]string{
			"default": {"openai", "anthropic", "deepseek"},
			"general": {"openai", "anthropic", "deepseek"},
		},
		DefaultProvider:          "openai",
		DefaultModel:             "gpt-4o-mini",
		RetryWithLowerComplexity: true,
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 1000,
			RedisTTL:   time.Hour,
		},
	}
}

// LoadRouterConfig reads a router configuration file. Format is
// auto-detected from the file extension (.yaml, .yml, .json). Missing
// sections fall back to the defaults.
func LoadRouterConfig(path string) (*RouterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read router config: %w", err)
	}

	cfg := DefaultRouterConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse router config YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse router config JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported router config extension: %s", filepath.Ext(path))
	}
	return cfg, nil
}
