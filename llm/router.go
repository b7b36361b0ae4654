package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gridflow/gridflow/internal/metrics"
	"github.com/gridflow/gridflow/types"
)

// RoutingDecision is the outcome of one routing request.
type RoutingDecision struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Tier     Tier   `json:"tier"`
	CacheHit bool   `json:"cache_hit"`
}

// RouterOptions configures the Router.
type RouterOptions struct {
	Logger *zap.Logger
	// Redis enables the second cache level when the config asks for it.
	Redis   *redis.Client
	Metrics *metrics.Collector
}

func normalizeRouterOptions(opts RouterOptions) RouterOptions {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// Router maps (taskType, promptContext) to a concrete provider/model pair.
// It is safe for concurrent use; the decision cache is its only shared
// mutable state.
type Router struct {
	cfg     *RouterConfig
	scorer  *ComplexityScorer
	cache   *DecisionCache
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewRouter creates a Router from the given configuration.
func NewRouter(cfg *RouterConfig, opts RouterOptions) *Router {
	if cfg == nil {
		cfg = DefaultRouterConfig()
	}
	opts = normalizeRouterOptions(opts)
	logger := opts.Logger.With(zap.String("component", "model_router"))
	return &Router{
		cfg:     cfg,
		scorer:  NewComplexityScorer(cfg.Scoring),
		cache:   NewDecisionCache(cfg.Cache, opts.Redis, logger),
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Route resolves the provider/model for a task profile. Decisions are
// cached keyed by a hash of (taskType, tier, provider preference list); a
// hit is observably identical to a fresh decision apart from CacheHit.
func (r *Router) Route(ctx context.Context, profile TaskProfile) (*RoutingDecision, error) {
	taskType := profile.TaskType
	if taskType == "" {
		taskType = "general"
	}

	tier := r.scorer.Score(profile)
	prefs := r.providerPreference(taskType)

	key := decisionKey(taskType, tier, prefs)
	if cached, err := r.cache.Get(ctx, key); err == nil {
		hit := *cached
		hit.CacheHit = true
		if r.metrics != nil {
			r.metrics.ObserveRoutingDecision(hit.Provider, string(hit.Tier), true)
		}
		return &hit, nil
	}

	decision, err := r.selectModel(taskType, tier, prefs)
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, key, decision)
	if r.metrics != nil {
		r.metrics.ObserveRoutingDecision(decision.Provider, string(decision.Tier), false)
	}
	r.logger.Debug("routing decision",
		zap.String("task_type", taskType),
		zap.String("tier", string(tier)),
		zap.String("provider", decision.Provider),
		zap.String("model", decision.Model),
	)
	return decision, nil
}

// providerPreference returns the preference-ordered provider list for a
// task type, falling back to the "default" entry.
func (r *Router) providerPreference(taskType string) []string {
	if prefs, ok := r.cfg.TaskProviders[taskType]; ok && len(prefs) > 0 {
		return prefs
	}
	return r.cfg.TaskProviders["default"]
}

// selectModel walks the preference list at the given tier, skipping models
// over the cost ceiling. Failing that it retries one tier lower when
// configured, then falls back to the default provider/model.
func (r *Router) selectModel(taskType string, tier Tier, prefs []string) (*RoutingDecision, error) {
	if dec := r.eligible(tier, prefs); dec != nil {
		return dec, nil
	}

	if r.cfg.RetryWithLowerComplexity && tier != TierLow {
		if dec := r.eligible(tier.Lower(), prefs); dec != nil {
			// Tier reports the scored complexity; the model was picked a
			// tier lower under the cost ceiling.
			dec.Tier = tier
			return dec, nil
		}
	}

	if r.cfg.DefaultProvider != "" && r.cfg.DefaultModel != "" {
		return &RoutingDecision{
			Provider: r.cfg.DefaultProvider,
			Model:    r.cfg.DefaultModel,
			Tier:     tier,
		}, nil
	}

	return nil, types.NewError(types.ErrRoutingUnresolved,
		"no eligible provider for task type "+taskType+" and no fallback configured")
}

func (r *Router) eligible(tier Tier, prefs []string) *RoutingDecision {
	for _, provider := range prefs {
		models, ok := r.cfg.RoutingMatrix[provider]
		if !ok {
			continue
		}
		model, ok := models[tier]
		if !ok || model == "" {
			continue
		}
		if r.cfg.MaxCostTier > 0 && r.cfg.ModelCosts[model] > r.cfg.MaxCostTier {
			continue
		}
		return &RoutingDecision{Provider: provider, Model: model, Tier: tier}
	}
	return nil
}

// decisionKey hashes (taskType, tier, providerPreference) into a cache key.
func decisionKey(taskType string, tier Tier, prefs []string) string {
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(tier))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(prefs, ",")))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
